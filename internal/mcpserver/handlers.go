package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *PayrailsClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *PayrailsClient) *Handlers {
	return &Handlers{client: client}
}

// HandleRoutePayment selects a processor for a transaction.
func (h *Handlers) HandleRoutePayment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	amount := req.GetFloat("amount", 0)
	if amount <= 0 {
		return mcp.NewToolResultError("amount must be a positive number of cents"), nil
	}
	currency := req.GetString("currency", "")
	description := req.GetString("description", "")

	raw, err := h.client.RoutePayment(ctx, int64(amount), currency, description)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Routing failed: %v", err)), nil
	}

	text, err := formatDecision(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decision: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleAssessRisk runs a freeze risk assessment.
func (h *Handlers) HandleAssessRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.AssessRisk(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Risk assessment failed: %v", err)), nil
	}

	text, err := formatAnalysis(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessment: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleProcessorHealth reports per-processor health.
func (h *Handlers) HandleProcessorHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ProcessorHealth(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Health check failed: %v", err)), nil
	}

	text, err := formatHealth(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse health: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleRecordTransaction records a ledger transaction.
func (h *Handlers) HandleRecordTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	txnType := req.GetString("type", "")
	if txnType == "" {
		return mcp.NewToolResultError("type is required"), nil
	}
	amount := req.GetFloat("amount", 0)
	if amount <= 0 {
		return mcp.NewToolResultError("amount must be a positive number of cents"), nil
	}
	description := req.GetString("description", "")

	raw, err := h.client.RecordTransaction(ctx, txnType, int64(amount), description)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to record transaction: %v", err)), nil
	}

	var txn struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(raw, &txn); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transaction: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Recorded %s of %d cents (id %s).", txn.Type, txn.Amount, txn.ID)), nil
}

// HandleListTransactions lists recent ledger activity.
func (h *Handlers) HandleListTransactions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hours := int(req.GetFloat("hours", 0))

	raw, err := h.client.ListTransactions(ctx, hours)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list transactions: %v", err)), nil
	}

	text, err := formatTransactions(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse transactions: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// -----------------------------------------------------------------------------
// Formatters
// -----------------------------------------------------------------------------

func formatDecision(raw json.RawMessage) (string, error) {
	var d struct {
		SelectedProcessor string   `json:"selected_processor"`
		Confidence        float64  `json:"confidence"`
		Reasoning         string   `json:"reasoning"`
		FallbackChain     []string `json:"fallback_chain"`
		FreezeAvoidance   bool     `json:"freeze_avoidance_triggered"`
		PrimaryStatus     string   `json:"primary_status"`
		RiskLevel         string   `json:"risk_level"`
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Selected processor: %s (confidence %.2f)\n", d.SelectedProcessor, d.Confidence)
	if d.FreezeAvoidance {
		sb.WriteString("Freeze avoidance triggered: the usual choice was too risky.\n")
	}
	if d.RiskLevel != "" {
		fmt.Fprintf(&sb, "Account risk: %s (primary processor %s)\n", d.RiskLevel, d.PrimaryStatus)
	}
	if len(d.FallbackChain) > 0 {
		fmt.Fprintf(&sb, "Fallbacks: %s\n", strings.Join(d.FallbackChain, " -> "))
	}
	fmt.Fprintf(&sb, "\nReasoning: %s", d.Reasoning)
	return sb.String(), nil
}

func formatAnalysis(raw json.RawMessage) (string, error) {
	var a struct {
		OverallRisk       string  `json:"overall_risk"`
		FreezeProbability float64 `json:"freeze_probability"`
		Factors           []struct {
			Pattern     string `json:"pattern"`
			Severity    string `json:"severity"`
			Description string `json:"description"`
			Timeline    string `json:"timeline"`
		} `json:"factors"`
		Recommendations  []string `json:"recommendations"`
		TransactionCount int      `json:"transaction_count"`
		WindowHours      int      `json:"window_hours"`
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Overall risk: %s (freeze probability %.0f%%)\n", a.OverallRisk, a.FreezeProbability*100)
	fmt.Fprintf(&sb, "Analyzed %d transactions over %d hours.\n", a.TransactionCount, a.WindowHours)

	if len(a.Factors) > 0 {
		sb.WriteString("\nDetected patterns:\n")
		for _, f := range a.Factors {
			fmt.Fprintf(&sb, "- [%s] %s (expected action: %s)\n", f.Severity, f.Description, f.Timeline)
		}
	}
	if len(a.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:\n")
		for _, r := range a.Recommendations {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
	}
	return sb.String(), nil
}

func formatHealth(raw json.RawMessage) (string, error) {
	var resp struct {
		Primary    string `json:"primary"`
		Processors []struct {
			ProcessorID       string   `json:"processor_id"`
			Status            string   `json:"status"`
			FreezeRisk        float64  `json:"freeze_risk"`
			FreezeReasons     []string `json:"freeze_reasons"`
			RecommendedAction string   `json:"recommended_action"`
		} `json:"processors"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Primary processor: %s\n\n", resp.Primary)
	for _, p := range resp.Processors {
		fmt.Fprintf(&sb, "%s: %s (freeze risk %.0f%%)\n", p.ProcessorID, p.Status, p.FreezeRisk*100)
		for _, r := range p.FreezeReasons {
			fmt.Fprintf(&sb, "  - %s\n", r)
		}
		if p.RecommendedAction != "" {
			fmt.Fprintf(&sb, "  Action: %s\n", p.RecommendedAction)
		}
	}
	return sb.String(), nil
}

func formatTransactions(raw json.RawMessage) (string, error) {
	var resp struct {
		Transactions []struct {
			ID          string `json:"id"`
			Type        string `json:"type"`
			Amount      int64  `json:"amount"`
			Currency    string `json:"currency"`
			Description string `json:"description"`
		} `json:"transactions"`
		Count       int `json:"count"`
		WindowHours int `json:"window_hours"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	if resp.Count == 0 {
		return fmt.Sprintf("No transactions in the last %d hours.", resp.WindowHours), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d transactions in the last %d hours:\n", resp.Count, resp.WindowHours)
	for _, t := range resp.Transactions {
		fmt.Fprintf(&sb, "- %s: %d %s", t.Type, t.Amount, t.Currency)
		if t.Description != "" {
			fmt.Fprintf(&sb, " (%s)", t.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
