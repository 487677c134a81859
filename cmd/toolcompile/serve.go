package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonwraymond/toolcompile/code"
	"github.com/jonwraymond/toolcompile/exec"
)

type serveFlags struct {
	engine      engineFlags
	metricsAddr string
}

func (f *serveFlags) opts() []opt {
	return []opt{
		newOpt(&f.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (disabled when empty)"),
	}
}

func newServeCommand() *cobra.Command {
	var f serveFlags
	v := newViper()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compile_and_run over the Model Context Protocol on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadOptions(v, cmd, f.opts()); err != nil {
				return err
			}
			if err := f.engine.load(v, cmd); err != nil {
				return err
			}
			return serve(cmd.Context(), &f)
		},
	}
	bindOptions(v, cmd, f.opts())
	f.engine.bind(v, cmd)
	return cmd
}

func serve(ctx context.Context, f *serveFlags) error {
	logger := f.engine.logger()
	defer func() { _ = logger.Sync() }()

	metrics := code.NewMetrics()
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.PrometheusCollectors()...)
		srv := &http.Server{
			Addr:              f.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	e, err := f.engine.newExec(logger, metrics)
	if err != nil {
		return err
	}
	defer e.Close()

	server := mcp.NewServer(&mcp.Implementation{Name: "toolcompile", Version: version}, nil)
	registerTools(server, e)

	logger.Info("serving on stdio")
	return server.Run(ctx, &mcp.StdioTransport{})
}

// runInput is the input of the compile_and_run tool.
type runInput struct {
	Name         string   `json:"name,omitempty" jsonschema:"logical name of the source unit"`
	Source       string   `json:"source" jsonschema:"Go source of a single file"`
	Capabilities []string `json:"capabilities,omitempty" jsonschema:"capabilities the source imports, e.g. strings or json"`
	Kind         string   `json:"kind,omitempty" jsonschema:"library (default) or executable"`
	TypeName     string   `json:"typeName,omitempty" jsonschema:"receiver type of the entry point, empty for functions"`
	MethodName   string   `json:"methodName,omitempty" jsonschema:"function or method to invoke; main for executables"`
	Arguments    []any    `json:"arguments,omitempty" jsonschema:"positional arguments"`
	TimeoutMs    int      `json:"timeoutMs,omitempty" jsonschema:"invocation timeout in milliseconds"`
}

func (in runInput) submission() code.Submission {
	kind := code.OutputKind(in.Kind)
	method := in.MethodName
	if method == "" && kind == code.OutputExecutable {
		method = "main"
	}
	return code.Submission{
		Unit:         code.NewSourceUnit(in.Name, in.Source),
		Capabilities: in.Capabilities,
		Kind:         kind,
		Invocation: code.InvocationRequest{
			TypeName:   in.TypeName,
			MethodName: method,
			Arguments:  in.Arguments,
		},
		Timeout: time.Duration(in.TimeoutMs) * time.Millisecond,
	}
}

func registerTools(server *mcp.Server, e *exec.Exec) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "compile_and_run",
		Description: "Compile Go source in memory, invoke one entry point and return the session report.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in runInput) (*mcp.CallToolResult, any, error) {
		rep := e.Run(ctx, in.submission())
		b, err := json.Marshal(rep)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding report: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
			IsError: !rep.OK(),
		}, nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_capabilities",
		Description: "List the capabilities source may request and the packages each provides.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		b, err := json.Marshal(e.Capabilities())
		if err != nil {
			return nil, nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
		}, nil, nil
	})
}
