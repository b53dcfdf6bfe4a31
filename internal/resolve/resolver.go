// Package resolve drives the bounded negotiation with the external
// natural-language resolver: rounds of retrieval requests answered from the
// document store through a per-session content cache, ending in a validated
// action batch or a failure.
package resolve

import (
	"context"
	"encoding/json"

	"pocketmemory/internal/document/model"
)

// GetDocumentTool is the only retrieval capability offered to the resolver.
const GetDocumentTool = "get_document"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleContext marks grounding messages produced by the loop itself.
	RoleContext Role = "context"
)

// Turn is one entry of the transcript. Exactly one of Content, Call or
// Result is meaningful.
type Turn struct {
	Role    Role
	Content string
	Call    *ToolCall
	Result  *ToolResult
}

type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

type ToolResult struct {
	CallID string
	Name   string
	Output json.RawMessage
}

type Param struct {
	Name        string
	Description string
}

// Tool describes a capability the resolver may invoke. All params are
// required strings.
type Tool struct {
	Name        string
	Description string
	Params      []Param
}

// Request is everything the resolver sees in one round.
type Request struct {
	Transcript []Turn
	Index      []model.IndexEntry
	// Tools is empty once the session's gate has closed.
	Tools []Tool
}

// Reply is either a set of tool calls or a finished payload.
type Reply struct {
	Calls   []ToolCall
	Payload json.RawMessage
}

type Resolver interface {
	Resolve(ctx context.Context, req *Request) (*Reply, error)
}

type ResolverFunc func(ctx context.Context, req *Request) (*Reply, error)

func (f ResolverFunc) Resolve(ctx context.Context, req *Request) (*Reply, error) {
	return f(ctx, req)
}

// DocumentSource resolves a document id for the session's owner. It returns
// model.ErrDocumentNotFound when the id is absent.
type DocumentSource interface {
	Document(ctx context.Context, id string) (*model.Document, error)
}

type SourceFunc func(ctx context.Context, id string) (*model.Document, error)

func (f SourceFunc) Document(ctx context.Context, id string) (*model.Document, error) {
	return f(ctx, id)
}

var getDocument = Tool{
	Name:        GetDocumentTool,
	Description: "Retrieve a full document by its unique identifier, including all content, tags, and metadata.",
	Params: []Param{{
		Name:        "docId",
		Description: "The UUID of the document to retrieve.",
	}},
}
