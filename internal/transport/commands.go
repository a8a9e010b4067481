package transport

import "github.com/crossroads-sim/worldengine/internal/ports"

// CommandKind enumerates the inbound WebSocket/REST command verbs
// SPEC_FULL.md §6 names: start/stop/step, spawn/remove agent, issue order.
type CommandKind string

const (
	CmdStart      CommandKind = "start"
	CmdStop       CommandKind = "stop"
	CmdStep       CommandKind = "step"
	CmdSpawnAgent CommandKind = "spawn_agent"
	CmdRemoveAgent CommandKind = "remove_agent"
	CmdIssueOrder CommandKind = "issue_order"
)

// Command is the read-side frame the WebSocket and REST surfaces both
// decode into; REST routes fill it from the URL/body, WS fills it from the
// decoded frame.
type Command struct {
	Kind    CommandKind    `json:"kind"`
	AgentID string         `json:"agent_id,omitempty"`
	Name    string         `json:"name,omitempty"`
	X       float64        `json:"x,omitempty"`
	Y       float64        `json:"y,omitempty"`
	ZoneID  string         `json:"zone_id,omitempty"`
	OrderType string       `json:"order_type,omitempty"`
	Priority  int          `json:"priority,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// CommandResult is the uniform response shape for both transports.
type CommandResult struct {
	OK      bool   `json:"ok"`
	AgentID string `json:"agent_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// CommandHandler is the narrow engine-control surface the transport layer
// drives. Implemented by the composition root in cmd/worldsim (see the
// engine type in main.go), kept here as an interface so this package never
// needs to import cmd/worldsim.
type CommandHandler interface {
	StartSim()
	StopSim()
	StepSim()
	SpawnAgent(name string, x, y float64, zoneID string) string
	RemoveAgent(agentID string) ports.HandlerResult
	IssueOrder(agentID, orderType string, priority int, detail map[string]any) bool
}

func dispatchCommand(h CommandHandler, cmd Command) CommandResult {
	if h == nil {
		return CommandResult{OK: false, Message: "no command handler wired"}
	}
	switch cmd.Kind {
	case CmdStart:
		h.StartSim()
		return CommandResult{OK: true}
	case CmdStop:
		h.StopSim()
		return CommandResult{OK: true}
	case CmdStep:
		h.StepSim()
		return CommandResult{OK: true}
	case CmdSpawnAgent:
		id := h.SpawnAgent(cmd.Name, cmd.X, cmd.Y, cmd.ZoneID)
		return CommandResult{OK: true, AgentID: id}
	case CmdRemoveAgent:
		res := h.RemoveAgent(cmd.AgentID)
		return CommandResult{OK: res.Status == ports.StatusCompleted, AgentID: cmd.AgentID, Message: res.Message}
	case CmdIssueOrder:
		ok := h.IssueOrder(cmd.AgentID, cmd.OrderType, cmd.Priority, cmd.Detail)
		return CommandResult{OK: ok, AgentID: cmd.AgentID}
	default:
		return CommandResult{OK: false, Message: "unknown command: " + string(cmd.Kind)}
	}
}
