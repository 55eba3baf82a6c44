package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/fieldops/internal/model"
)

var (
	dealerFlag   = flagDef{"dealer-id", "dealer id"}
	productFlag  = flagDef{"product-id", "product id"}
	repFlag      = flagDef{"sales-person-id", "sales person id"}
	notesFlag    = flagDef{"notes", "free-text notes"}
	limitFlag    = flagDef{"limit", "maximum rows returned"}
	priorityFlag = flagDef{"priority", "LOW, MEDIUM, HIGH or CRITICAL"}
)

var consumeCmd = functionCmd("consume", "Consume open commitments against an order", "consume_commitment",
	dealerFlag, productFlag,
	flagDef{"order-quantity", "ordered quantity"},
	flagDef{"idempotency-key", "replays with the same key return the first result"},
)

var atpCmd = functionCmd("atp", "Check available-to-promise stock for a product", "check_inventory",
	productFlag,
	flagDef{"quantity", "requested quantity"},
)

var resolveCmd = functionCmd("resolve", "Resolve a spoken dealer or product name to an id", "resolve_entity",
	flagDef{"entity-type", "dealer or product"},
	flagDef{"entity-name", "name as spoken"},
	flagDef{"scope", "limit dealers to this sales person"},
)

var dealerCmd = functionCmd("dealer", "Show a dealer profile", "get_dealer_profile", dealerFlag)

var commitmentsCmd = &cobra.Command{
	Use:   "commitments",
	Short: "Manage dealer commitments",
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Create and list orders",
}

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Record payments and show receivables",
}

var visitCmd = &cobra.Command{
	Use:   "visit",
	Short: "Log and list dealer visits",
}

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Raise and list manager alerts",
}

func init() {
	commitmentsCmd.AddCommand(
		functionCmd("list", "List the pending commitment pipeline", "get_pending_commitments", dealerFlag, productFlag),
		functionCmd("create", "Record a dealer commitment", "create_commitment",
			dealerFlag, productFlag, repFlag, notesFlag,
			flagDef{"visit-id", "visit the commitment was taken on"},
			flagDef{"quantity-promised", "promised quantity"},
			flagDef{"expected-order-date", "YYYY-MM-DD"},
			flagDef{"confidence-score", "0 to 1"},
		),
		functionCmd("expire", "Expire commitments past their expected date", "expire_commitments",
			flagDef{"grace-days", "days past the expected date before expiry"},
		),
		commitmentsCancelCmd,
	)

	orderCmd.AddCommand(
		functionCmd("create", "Create an order and its invoice", "create_order",
			dealerFlag, productFlag, repFlag, notesFlag,
			flagDef{"quantity", "ordered quantity"},
			flagDef{"commitment-id", "commitment the order fulfils"},
		),
		functionCmd("show", "Show one order with its items", "get_order", flagDef{"order-id", "order id"}),
		functionCmd("history", "List a dealer's recent orders", "get_order_history", dealerFlag, limitFlag),
	)

	paymentCmd.AddCommand(
		functionCmd("record", "Record a payment against an invoice", "record_payment",
			flagDef{"invoice-id", "invoice id"},
			flagDef{"amount", "amount collected"},
			flagDef{"payment-mode", "payment mode, defaults to CASH"},
			flagDef{"collected-by", "sales person id"},
			flagDef{"reference", "cheque or transaction reference"},
		),
		functionCmd("status", "Show a dealer's outstanding and overdue invoices", "get_payment_status", dealerFlag),
	)

	visitCmd.AddCommand(
		functionCmd("log", "Record a dealer visit", "create_visit_record",
			dealerFlag, repFlag,
			flagDef{"visit-date", "YYYY-MM-DD, defaults to today"},
			flagDef{"purpose", "ORDER, COLLECTION or ROUTINE"},
			flagDef{"collection-amount", "cash collected on the visit"},
			flagDef{"next-action", "follow-up action"},
			flagDef{"raw-notes", "visit notes"},
		),
		functionCmd("recent", "List recent visits", "get_recent_visits", dealerFlag, limitFlag),
	)

	alertCmd.AddCommand(
		functionCmd("generate", "Create an alert without notifying", "generate_alert",
			priorityFlag,
			flagDef{"alert-type", "alert category"},
			flagDef{"entity-type", "entity the alert is about"},
			flagDef{"entity-id", "entity id"},
			flagDef{"message", "alert text"},
		),
		functionCmd("list", "List active alerts, most urgent first", "get_active_alerts",
			limitFlag,
			flagDef{"assigned-to", "only alerts assigned to this sales person"},
		),
		functionCmd("send", "Create an alert and notify the manager on Telegram", "send_manager_alert",
			priorityFlag,
			flagDef{"alert-type", "alert category"},
			flagDef{"entity-type", "entity the alert is about"},
			flagDef{"entity-id", "entity id"},
			flagDef{"message", "alert text"},
		),
	)

	rootCmd.AddCommand(consumeCmd, atpCmd, resolveCmd, dealerCmd,
		commitmentsCmd, orderCmd, paymentCmd, visitCmd, alertCmd)
}

var commitmentsCancelCmd = &cobra.Command{
	Use:   "cancel <commitment-id>",
	Short: "Cancel a pending commitment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Services.Commitments.Cancel(ctx, args[0]); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]string{"commitment_id": args[0], "status": string(model.CommitmentCancelled)})
	},
}
