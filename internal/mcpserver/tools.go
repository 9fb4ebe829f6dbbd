package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the payment routing MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolRoutePayment = mcp.NewTool("route_payment",
	mcp.WithDescription(
		"Select the best payment processor for a transaction. "+
			"Considers the merchant's current freeze risk, processor capabilities, "+
			"and business category, and returns the selected processor with a "+
			"fallback chain of healthy backups."),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Transaction amount in minor units (cents), e.g. 20000 for $200.00")),
	mcp.WithString("currency",
		mcp.Description("Three-letter currency code (default 'usd')")),
	mcp.WithString("description",
		mcp.Description("Transaction description; category keywords like 'nft' or 'b2b' steer the selection")),
)

var ToolAssessRisk = mcp.NewTool("assess_risk",
	mcp.WithDescription(
		"Run a freeze risk assessment over the merchant's recent payment activity. "+
			"Detects volume spikes, refund surges, chargeback patterns, and velocity "+
			"anomalies, and returns an overall risk level with a freeze probability "+
			"and recommendations."),
)

var ToolProcessorHealth = mcp.NewTool("processor_health",
	mcp.WithDescription(
		"Check the health of every payment processor. "+
			"Shows which processors are healthy, degraded, or frozen, along with "+
			"freeze risk and recommended actions."),
)

var ToolRecordTransaction = mcp.NewTool("record_transaction",
	mcp.WithDescription(
		"Record a balance transaction (charge, refund, or adjustment) in the ledger. "+
			"Recorded activity feeds the freeze risk assessment."),
	mcp.WithString("type",
		mcp.Required(),
		mcp.Description("Transaction type"),
		mcp.Enum("charge", "refund", "adjustment")),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Amount in minor units (cents); must be positive")),
	mcp.WithString("description",
		mcp.Description("Optional transaction description")),
)

var ToolListTransactions = mcp.NewTool("list_transactions",
	mcp.WithDescription(
		"List recent balance transactions from the ledger."),
	mcp.WithNumber("hours",
		mcp.Description("Lookback window in hours (default 24)")),
)
