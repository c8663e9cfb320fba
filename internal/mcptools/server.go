package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with the generation tools registered.
func NewMCPServer(svc *GenerationService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "elicit",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_generation",
		Description: "Start a project's generation pipeline (requirements, ai or collection). Resumes from the current step; a project whose artifacts already exist completes immediately.",
	}, svc.StartGeneration)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_progress",
		Description: "Get the current step, percentage, per-step errors and item counters of a project's pipeline.",
	}, svc.GetProgress)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_generation",
		Description: "Ask a running pipeline to stop before its next item or step. Results recorded so far are kept.",
	}, svc.CancelGeneration)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "restart_generation",
		Description: "Clear a pipeline's counters, errors and results and run it again from the first step.",
	}, svc.RestartGeneration)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_clusters",
		Description: "Return the story clusters indexed for a project, with graph statistics. Optionally list the stories of one persona.",
	}, svc.ListClusters)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP server over streamable HTTP until ctx is
// cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
