package extractions

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/ledgergate/ledgergate/internal/collab"
	"github.com/ledgergate/ledgergate/internal/documents"
	"github.com/ledgergate/ledgergate/pkg/formatting"
)

// Extractor runs the model against a document's stored content and produces
// a scored Result. Each call creates its own agent so extractions are safe
// to run concurrently.
type Extractor struct {
	agent  gaconfig.AgentConfig
	docs   documents.System
	logger *slog.Logger
}

// NewExtractor creates an Extractor using the given agent configuration.
func NewExtractor(
	agentCfg gaconfig.AgentConfig,
	docs documents.System,
	logger *slog.Logger,
) *Extractor {
	return &Extractor{
		agent:  agentCfg,
		docs:   docs,
		logger: logger.With("system", "extractor"),
	}
}

// Extract downloads the document content, prompts the model with the schema
// for the document's type, and scores the parsed response. Download and
// model failures are transient; an unparseable response or unsupported
// content is permanent.
func (x *Extractor) Extract(ctx context.Context, doc *documents.Document) (*Result, error) {
	content, err := x.readContent(ctx, doc)
	if err != nil {
		return nil, err
	}

	a, err := agent.New(&x.agent)
	if err != nil {
		return nil, collab.Permanent(fmt.Errorf("create agent: %w", err))
	}

	resp, err := a.Chat(ctx, promptFor(doc.Type, content))
	if err != nil {
		return nil, collab.Transient(fmt.Errorf("extraction chat call: %w", err))
	}

	result := &Result{
		DocumentID:   doc.ID,
		Type:         doc.Type,
		ModelName:    x.agent.Model.Name,
		ProviderName: x.agent.Provider.Name,
	}

	if err := parseFields(result, resp.Text()); err != nil {
		return nil, collab.Permanent(fmt.Errorf("%w: %w", ErrModelResponse, err))
	}

	result.Confidence, result.Warnings = result.Score()
	result.Level = LevelFor(result.Confidence)

	x.logger.Info("document extracted",
		"document_id", doc.ID,
		"type", doc.Type,
		"confidence", result.Confidence,
		"level", result.Level,
	)
	return result, nil
}

func (x *Extractor) readContent(ctx context.Context, doc *documents.Document) ([]byte, error) {
	body, err := x.docs.Download(ctx, doc.ID)
	if err != nil {
		return nil, collab.Transient(fmt.Errorf("download document content: %w", err))
	}
	defer body.Close()

	content, err := io.ReadAll(body)
	if err != nil {
		return nil, collab.Transient(fmt.Errorf("read document content: %w", err))
	}
	if len(content) == 0 {
		return nil, collab.Permanent(ErrUnreadable)
	}
	return content, nil
}

func parseFields(r *Result, content string) error {
	switch r.Type {
	case documents.TypeInvoice:
		fields, err := formatting.Parse[InvoiceFields](content)
		if err != nil {
			return err
		}
		r.Invoice = &fields
	case documents.TypeContract:
		fields, err := formatting.Parse[ContractFields](content)
		if err != nil {
			return err
		}
		r.Contract = &fields
	case documents.TypeTicket:
		fields, err := formatting.Parse[TicketFields](content)
		if err != nil {
			return err
		}
		r.Ticket = &fields
	default:
		// Unknown documents extract with the invoice schema, the most
		// common category, and carry the low confidence that results.
		fields, err := formatting.Parse[InvoiceFields](content)
		if err != nil {
			return err
		}
		r.Invoice = &fields
	}
	return nil
}

const promptHeader = `Extract the structured fields below from the document content.
Respond with a single JSON object matching the schema exactly.
Use null for fields you cannot find. Do not invent values.`

var typeSchemas = map[documents.Type]string{
	documents.TypeInvoice: `{
  "vendor": string, "invoice_number": string, "invoice_date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD", "subtotal": number|null, "tax": number|null,
  "total": number|null, "currency": string,
  "line_items": [{"description": string, "quantity": number, "unit_price": number, "amount": number}]
}`,
	documents.TypeContract: `{
  "parties": [string], "effective_date": "YYYY-MM-DD", "expiration_date": "YYYY-MM-DD",
  "contract_value": number|null, "payment_terms": string, "auto_renewal": boolean|null
}`,
	documents.TypeTicket: `{
  "customer": string, "issue_category": string, "priority": string,
  "summary": string, "requested_action": string
}`,
}

func promptFor(t documents.Type, content []byte) string {
	schema, ok := typeSchemas[t]
	if !ok {
		schema = typeSchemas[documents.TypeInvoice]
	}

	return fmt.Sprintf("%s\n\nSchema:\n%s\n\nDocument content:\n%s", promptHeader, schema, content)
}
