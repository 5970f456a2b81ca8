// Command team-mcp exposes the background job supervisor (internal/jobs)
// as an MCP stdio tool server: start/status/wait/cleanup, so a driver
// agent can launch and monitor teams without shelling out to teamctl
// directly. Grounded on the teacher pack's mcp-server command, which
// wires a domain service into mark3labs/mcp-go the same way.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/omc/teamctl/internal/jobindex"
	"github.com/omc/teamctl/internal/jobs"
	"github.com/omc/teamctl/internal/tmux"
)

func main() {
	logger := log.New(os.Stderr, "[team-mcp] ", log.LstdFlags)

	jobsDir, err := jobs.DefaultJobsDir()
	if err != nil {
		logger.Fatalf("resolve jobs dir: %v", err)
	}

	var idx *jobindex.Index
	if dbPath := os.Getenv("OMC_JOB_INDEX_DB"); dbPath != "" {
		idx, err = jobindex.Open(dbPath)
		if err != nil {
			logger.Printf("job index unavailable, list_jobs tool disabled: %v", err)
			idx = nil
		} else {
			defer idx.Close()
		}
	}

	sup, err := jobs.New(jobs.Config{
		JobsDir: jobsDir,
		Killer:  tmux.Get(),
		Index:   idx,
	})
	if err != nil {
		logger.Fatalf("construct supervisor: %v", err)
	}

	mcpServer := server.NewMCPServer(
		"team-mcp",
		"1.0.0",
		server.WithInstructions("Start, monitor, and tear down multi-agent teamctl teams running in tmux panes."),
	)

	registerTools(mcpServer, sup, idx, logger)

	stdioSrv := server.NewStdioServer(mcpServer)
	if err := stdioSrv.Listen(context.Background(), os.Stdin, os.Stdout); err != nil {
		logger.Fatalf("stdio server: %v", err)
	}
}

func registerTools(s *server.MCPServer, sup *jobs.Supervisor, idx *jobindex.Index, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("start_team",
			mcp.WithDescription("Start a new team: spawns the scheduler runtime against a tmux session and returns immediately with a job id."),
			mcp.WithString("teamName", mcp.Required(), mcp.Description("Team identifier, lowercase alphanumeric plus hyphens")),
			mcp.WithArray("agentTypes", mcp.Required(), mcp.Description("Agent family per worker slot, e.g. [\"claude\",\"codex\"]")),
			mcp.WithArray("tasks", mcp.Required(), mcp.Description("Task objects with 'subject' and 'description' fields")),
			mcp.WithString("cwd", mcp.Required(), mcp.Description("Working directory the team operates in")),
			mcp.WithNumber("workerCount", mcp.Description("Advisory worker count; concurrency is capped by distinct agentTypes")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			startReq, err := parseStartRequest(args)
			if err != nil {
				return nil, err
			}
			result, err := sup.Start(ctx, startReq)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResultText(fmt.Sprintf("jobId=%s pid=%d %s", result.JobID, result.PID, result.Message)), nil
		},
	)

	s.AddTool(
		mcp.NewTool("team_status",
			mcp.WithDescription("Read a team job's current status without blocking."),
			mcp.WithString("jobId", mcp.Required(), mcp.Description("Job id returned by start_team")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			jobID, _ := req.GetArguments()["jobId"].(string)
			result, err := sup.Status(jobID)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResultText(fmt.Sprintf("status=%s elapsed=%.1fs result=%q stderr=%q",
				result.Status, result.ElapsedSeconds, result.Result, result.Stderr)), nil
		},
	)

	s.AddTool(
		mcp.NewTool("wait_team",
			mcp.WithDescription("Block until a team job reaches a terminal status, nudging idle worker panes while waiting."),
			mcp.WithString("jobId", mcp.Required(), mcp.Description("Job id returned by start_team")),
			mcp.WithNumber("timeoutMs", mcp.Description("Maximum time to wait, default 5 minutes, capped at 1 hour")),
			mcp.WithNumber("nudgeDelayMs", mcp.Description("Idle time before nudging a worker pane, default 30s")),
			mcp.WithNumber("nudgeMaxCount", mcp.Description("Maximum nudges per worker pane, default 3")),
			mcp.WithString("nudgeMessage", mcp.Description("Message submitted into an idle worker pane, default \"Continue working on your assigned task.\"")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			jobID, _ := args["jobId"].(string)
			nudgeMessage, _ := args["nudgeMessage"].(string)
			opts := jobs.WaitOptions{
				TimeoutMs: intArg(args, "timeoutMs"),
				Nudge: jobs.NudgeOptions{
					DelayMs:  intArg(args, "nudgeDelayMs"),
					MaxCount: intArg(args, "nudgeMaxCount"),
					Message:  nudgeMessage,
				},
			}
			result, err := sup.Wait(ctx, jobID, opts)
			if err != nil {
				return nil, err
			}
			nudged := 0
			if result.Nudges != nil {
				for _, c := range result.Nudges.Counts {
					nudged += c
				}
			}
			return mcp.NewToolResultText(fmt.Sprintf("status=%s timedOut=%v elapsed=%.1fs nudges=%d result=%q",
				result.Status, result.TimedOut, result.ElapsedSeconds, nudged, result.Result)), nil
		},
	)

	s.AddTool(
		mcp.NewTool("cleanup_team",
			mcp.WithDescription("Tear down a team job's tmux panes: write a shutdown sentinel, wait for acks, then force-kill any panes still alive."),
			mcp.WithString("jobId", mcp.Required(), mcp.Description("Job id returned by start_team")),
			mcp.WithNumber("graceMs", mcp.Description("Grace period for worker acks before force-kill, default 10s")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			jobID, _ := args["jobId"].(string)
			summary, err := sup.Cleanup(ctx, jobID, intArg(args, "graceMs"))
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResultText(summary), nil
		},
	)

	if idx != nil {
		s.AddTool(
			mcp.NewTool("list_jobs",
				mcp.WithDescription("List a team's job history from the SQLite job index, most recent first."),
				mcp.WithString("teamName", mcp.Required(), mcp.Description("Team identifier")),
			),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				teamName, _ := req.GetArguments()["teamName"].(string)
				rows, err := sup.ListJobs(teamName)
				if err != nil {
					return nil, err
				}
				if len(rows) == 0 {
					return mcp.NewToolResultText("no jobs found"), nil
				}
				out := ""
				for _, r := range rows {
					out += fmt.Sprintf("%s status=%s pid=%d started=%s\n", r.JobID, r.Status, r.PID, r.StartedAt.Format("2006-01-02T15:04:05"))
				}
				return mcp.NewToolResultText(out), nil
			},
		)
	}

	logger.Printf("registered tools (job index enabled: %v)", idx != nil)
}

func parseStartRequest(args map[string]any) (jobs.StartRequest, error) {
	teamName, _ := args["teamName"].(string)
	cwd, _ := args["cwd"].(string)
	if teamName == "" || cwd == "" {
		return jobs.StartRequest{}, fmt.Errorf("teamName and cwd are required")
	}

	rawTypes, _ := args["agentTypes"].([]any)
	agentTypes := make([]string, 0, len(rawTypes))
	for _, t := range rawTypes {
		if s, ok := t.(string); ok {
			agentTypes = append(agentTypes, s)
		}
	}

	rawTasks, _ := args["tasks"].([]any)
	tasks := make([]jobs.Task, 0, len(rawTasks))
	for _, rt := range rawTasks {
		m, ok := rt.(map[string]any)
		if !ok {
			continue
		}
		subject, _ := m["subject"].(string)
		description, _ := m["description"].(string)
		tasks = append(tasks, jobs.Task{Subject: subject, Description: description})
	}

	return jobs.StartRequest{
		TeamName:    teamName,
		AgentTypes:  agentTypes,
		Tasks:       tasks,
		Cwd:         cwd,
		WorkerCount: intArg(args, "workerCount"),
	}, nil
}

func intArg(args map[string]any, key string) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return 0
}
