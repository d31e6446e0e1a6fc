package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	core "taskmarket-backend/core/marketplace"
)

// registerCreateTaskTool creates a tool for posting a funded task.
func (s *Server) registerCreateTaskTool() {
	tool := mcp.NewTool("create_task",
		mcp.WithDescription("Create a task with a funded bounty"),
		mcp.WithString("creator", mcp.Required(), mcp.Description("Creator principal")),
		mcp.WithString("content_ref", mcp.Required(), mcp.Description("Opaque task description reference")),
		mcp.WithNumber("bounty_sats", mcp.Required(), mcp.Description("Bounty in sats, escrowed on creation")),
		mcp.WithNumber("deadline_seconds", mcp.Required(), mcp.Description("Seconds from now until the task deadline")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		creator, err := argString(args, "creator")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		contentRef, err := argString(args, "content_ref")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		bounty, err := argInt64(args, "bounty_sats")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		deadlineSecs, err := argInt64(args, "deadline_seconds")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.engine.CreateTask(core.Principal(creator), contentRef, bounty,
			time.Now().Add(time.Duration(deadlineSecs)*time.Second))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create task: %v", err)), nil
		}
		return resultJSON("Task created", task), nil
	})
}

// registerClaimTaskTool creates a tool for claiming an open task.
func (s *Server) registerClaimTaskTool() {
	tool := mcp.NewTool("claim_task",
		mcp.WithDescription("Claim an open task by posting the required stake"),
		mcp.WithString("worker", mcp.Required(), mcp.Description("Worker principal")),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Task to claim")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		worker, err := argString(args, "worker")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		taskID, err := argUint64(args, "task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.engine.ClaimTask(core.Principal(worker), taskID)
		if err != nil {
			if blocking, ok := core.HasActiveTask(err); ok {
				return mcp.NewToolResultError(fmt.Sprintf("Worker already holds active task %d", blocking)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("Failed to claim task: %v", err)), nil
		}
		return resultJSON("Task claimed", task), nil
	})
}

// registerSubmitWorkTool creates a tool for submitting completed work.
func (s *Server) registerSubmitWorkTool() {
	tool := mcp.NewTool("submit_work",
		mcp.WithDescription("Submit the deliverable for a claimed task"),
		mcp.WithString("worker", mcp.Required(), mcp.Description("Assigned worker principal")),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Claimed task")),
		mcp.WithString("deliverable_ref", mcp.Required(), mcp.Description("Opaque deliverable reference")),
		mcp.WithString("summary", mcp.Description("Free-text summary of the work")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		worker, err := argString(args, "worker")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		taskID, err := argUint64(args, "task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		deliverableRef, err := argString(args, "deliverable_ref")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		summary, _ := args["summary"].(string)

		sub, err := s.engine.SubmitWork(core.Principal(worker), taskID, deliverableRef, summary)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to submit work: %v", err)), nil
		}
		return resultJSON("Work submitted", sub), nil
	})
}

// registerApproveTaskTool creates a tool for direct approval.
func (s *Server) registerApproveTaskTool() {
	tool := mcp.NewTool("approve_task",
		mcp.WithDescription("Approve submitted work and settle the bounty in full"),
		mcp.WithString("creator", mcp.Required(), mcp.Description("Task creator principal")),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Submitted task")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		creator, err := argString(args, "creator")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		taskID, err := argUint64(args, "task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.engine.Approve(core.Principal(creator), taskID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to approve task: %v", err)), nil
		}
		return resultJSON("Task approved and settled", task), nil
	})
}

// registerRejectTaskTool creates a tool for direct rejection.
func (s *Server) registerRejectTaskTool() {
	tool := mcp.NewTool("reject_task",
		mcp.WithDescription("Reject submitted work; the worker forfeits part of the stake and the task reopens"),
		mcp.WithString("creator", mcp.Required(), mcp.Description("Task creator principal")),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Submitted task")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		creator, err := argString(args, "creator")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		taskID, err := argUint64(args, "task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.engine.Reject(core.Principal(creator), taskID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to reject task: %v", err)), nil
		}
		return resultJSON("Task rejected and reopened", task), nil
	})
}

// registerCancelTaskTool creates a tool for cancelling an unclaimed task.
func (s *Server) registerCancelTaskTool() {
	tool := mcp.NewTool("cancel_task",
		mcp.WithDescription("Cancel an open task and refund the bounty"),
		mcp.WithString("creator", mcp.Required(), mcp.Description("Task creator principal")),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Open task")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		creator, err := argString(args, "creator")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		taskID, err := argUint64(args, "task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, err := s.engine.CancelTask(core.Principal(creator), taskID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to cancel task: %v", err)), nil
		}
		return resultJSON("Task cancelled", task), nil
	})
}

// registerVerifyWorkTool creates a tool for verifier votes.
func (s *Server) registerVerifyWorkTool() {
	tool := mcp.NewTool("verify_work",
		mcp.WithDescription("Cast a verifier vote on a submitted task; quorum finalizes the outcome"),
		mcp.WithString("verifier", mcp.Required(), mcp.Description("Verifier principal (not creator or worker)")),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Submitted task")),
		mcp.WithBoolean("approve", mcp.Required(), mcp.Description("true to approve, false to reject")),
		mcp.WithString("feedback", mcp.Description("Feedback text")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		verifier, err := argString(args, "verifier")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		taskID, err := argUint64(args, "task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		approve, err := argBool(args, "approve")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		feedback, _ := args["feedback"].(string)

		rec, err := s.engine.VerifyWork(core.Principal(verifier), taskID, approve, feedback)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to record vote: %v", err)), nil
		}
		return resultJSON("Vote recorded", rec), nil
	})
}

// registerOpenDisputeTool creates a tool for escalating a submitted task.
func (s *Server) registerOpenDisputeTool() {
	tool := mcp.NewTool("open_dispute",
		mcp.WithDescription("Escalate a submitted task to arbitration"),
		mcp.WithString("initiator", mcp.Required(), mcp.Description("Creator or worker principal")),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Submitted task")),
		mcp.WithString("evidence_ref", mcp.Required(), mcp.Description("Opaque evidence reference")),
		mcp.WithNumber("voting_seconds", mcp.Description("Voting period in seconds (default from config)")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		initiator, err := argString(args, "initiator")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		taskID, err := argUint64(args, "task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		evidenceRef, err := argString(args, "evidence_ref")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		votingPeriod := s.defaultVoting
		if v, ok := args["voting_seconds"].(float64); ok && v > 0 {
			votingPeriod = time.Duration(v) * time.Second
		}

		dispute, err := s.engine.OpenDispute(core.Principal(initiator), taskID, evidenceRef, votingPeriod)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to open dispute: %v", err)), nil
		}
		return resultJSON("Dispute opened", dispute), nil
	})
}

// registerCastDisputeVoteTool creates a tool for arbitration votes.
func (s *Server) registerCastDisputeVoteTool() {
	tool := mcp.NewTool("cast_dispute_vote",
		mcp.WithDescription("Cast a weighted arbitration vote on an open dispute"),
		mcp.WithString("authority", mcp.Required(), mcp.Description("Arbitration authority principal")),
		mcp.WithString("dispute_id", mcp.Required(), mcp.Description("Open dispute")),
		mcp.WithBoolean("support_worker", mcp.Required(), mcp.Description("true to vote for the worker")),
		mcp.WithNumber("weight", mcp.Required(), mcp.Description("Positive vote weight")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		authority, err := argString(args, "authority")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		disputeID, err := argString(args, "dispute_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		supportWorker, err := argBool(args, "support_worker")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		weight, err := argInt64(args, "weight")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		dispute, err := s.engine.CastDisputeVote(core.Principal(authority), disputeID, supportWorker, weight)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to cast vote: %v", err)), nil
		}
		return resultJSON("Vote cast", dispute), nil
	})
}

// registerResolveDisputeTool creates a tool for finalizing a dispute.
func (s *Server) registerResolveDisputeTool() {
	tool := mcp.NewTool("resolve_dispute",
		mcp.WithDescription("Resolve a dispute after its voting deadline and settle accordingly"),
		mcp.WithString("caller", mcp.Required(), mcp.Description("Calling principal")),
		mcp.WithString("dispute_id", mcp.Required(), mcp.Description("Dispute to resolve")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		caller, err := argString(args, "caller")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		disputeID, err := argString(args, "dispute_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		dispute, err := s.engine.ResolveDispute(core.Principal(caller), disputeID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve dispute: %v", err)), nil
		}
		return resultJSON("Dispute resolved", dispute), nil
	})
}

// registerGetDisputeTool creates a lookup tool for disputes.
func (s *Server) registerGetDisputeTool() {
	tool := mcp.NewTool("get_dispute",
		mcp.WithDescription("Get a dispute by ID"),
		mcp.WithString("dispute_id", mcp.Required(), mcp.Description("Dispute ID")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		disputeID, err := argString(request.GetArguments(), "dispute_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		dispute, err := s.engine.GetDispute(disputeID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get dispute: %v", err)), nil
		}
		return resultJSON("Dispute details", dispute), nil
	})
}

// registerGetTaskTool creates a lookup tool for tasks.
func (s *Server) registerGetTaskTool() {
	tool := mcp.NewTool("get_task",
		mcp.WithDescription("Get a task by ID"),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Task ID")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := argUint64(request.GetArguments(), "task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		task, err := s.engine.GetTask(taskID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get task: %v", err)), nil
		}
		return resultJSON("Task details", task), nil
	})
}

// registerListTasksTool creates a filtered listing tool.
func (s *Server) registerListTasksTool() {
	tool := mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks with optional filtering"),
		mcp.WithString("status", mcp.Description("Filter by status")),
		mcp.WithString("creator", mcp.Description("Filter by creator principal")),
		mcp.WithString("worker", mcp.Description("Filter by worker principal")),
		mcp.WithNumber("limit", mcp.Description("Maximum results")),
		mcp.WithNumber("offset", mcp.Description("Results to skip")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		filter := core.TaskFilter{}
		if v, ok := args["status"].(string); ok {
			filter.Status = core.TaskStatus(v)
		}
		if v, ok := args["creator"].(string); ok {
			filter.Creator = core.Principal(v)
		}
		if v, ok := args["worker"].(string); ok {
			filter.Worker = core.Principal(v)
		}
		if v, ok := args["limit"].(float64); ok {
			filter.Limit = int(v)
		}
		if v, ok := args["offset"].(float64); ok {
			filter.Offset = int(v)
		}

		tasks, err := s.engine.ListTasks(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list tasks: %v", err)), nil
		}
		return resultJSON(fmt.Sprintf("Found %d tasks", len(tasks)), tasks), nil
	})
}

// registerTaskHistoryTool creates a tool replaying the archived event
// trail for one task.
func (s *Server) registerTaskHistoryTool() {
	tool := mcp.NewTool("task_history",
		mcp.WithDescription("Replay the full event history of a task from the archive"),
		mcp.WithNumber("task_id", mcp.Required(), mcp.Description("Task ID")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID, err := argUint64(request.GetArguments(), "task_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		history, err := s.archive.TaskHistory(ctx, taskID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to load history: %v", err)), nil
		}
		return resultJSON(fmt.Sprintf("History for task %d", taskID), history), nil
	})
}

// registerStakeOfTool creates a lookup tool for worker stake entries.
func (s *Server) registerStakeOfTool() {
	tool := mcp.NewTool("stake_of",
		mcp.WithDescription("Get a worker's escrowed stake and active task"),
		mcp.WithString("worker", mcp.Required(), mcp.Description("Worker principal")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		worker, err := argString(request.GetArguments(), "worker")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		entry := s.engine.StakeOf(core.Principal(worker))
		return resultJSON("Stake entry", entry), nil
	})
}

// registerTreasuryStatusTool creates a tool reporting accumulated
// penalties.
func (s *Server) registerTreasuryStatusTool() {
	tool := mcp.NewTool("treasury_status",
		mcp.WithDescription("Get the treasury balance of forfeited stakes"),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return resultJSON("Treasury", map[string]any{
			"balance_sats": s.engine.TreasuryBalance(),
			"paused":       s.engine.Paused(),
		}), nil
	})
}
