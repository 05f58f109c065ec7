package llm

// invoiceSchema is the JSON shape the model is asked to return. It
// mirrors the models.ExtractedInvoice field tags.
const invoiceSchema = `{
  "invoice_number": "string or null",
  "invoice_date": "YYYY-MM-DD or null",
  "due_date": "YYYY-MM-DD or null",
  "supplier": {
    "name": "string or null",
    "tax_id": "string or null",
    "company_id": "string or null",
    "address": "string or null",
    "email": "string or null",
    "phone": "string or null",
    "website": "string or null"
  },
  "bill_to": {
    "name": "string or null",
    "address": "string or null",
    "email": "string or null",
    "contact": "string or null"
  },
  "po_number": "string or null",
  "reference": "string or null",
  "line_items": [
    {
      "line_number": "integer or null",
      "sku": "string or null",
      "description": "string or null",
      "quantity": "number or null",
      "unit": "string or null",
      "unit_price": "number or null",
      "discount": "number or null",
      "total": "number or null"
    }
  ],
  "subtotal": "number or null",
  "tax_rate": "number or null",
  "tax_amount": "number or null",
  "shipping": "number or null",
  "other_charges": "number or null",
  "total": "number or null",
  "currency": "string or null",
  "payment_terms": "string or null",
  "bank_details": "string or null",
  "notes": "string or null"
}`

const promptRules = `IMPORTANT RULES:
- Return ONLY the JSON object, no markdown, no explanation, no code fences
- All monetary amounts must be plain numbers (no currency symbols, no commas)
- All dates must be in YYYY-MM-DD format
- Tax and business registration numbers: preserve punctuation as found
- Use null for any field not found in the invoice
- tax_rate must be a decimal (e.g. 0.10 for 10%, not 10)`

// promptFull is used when line items must come from the model.
const promptFull = `You are an invoice data extraction system. The invoice below was extracted from a PDF. Extract all structured data and return it as valid JSON.

` + promptRules + `

Return a JSON object with exactly this structure:
` + invoiceSchema + `

Invoice text:
---
%DOCUMENT%
---`

// promptMetadataOnly is used when line items were already extracted
// from the document tables; the model only fills the header fields.
const promptMetadataOnly = `You are an invoice data extraction system. The invoice below was extracted from a PDF. The line items have already been extracted directly from the document tables, so you do NOT need to extract them. Set "line_items" to [].

Focus on the header and summary fields: invoice number, dates, supplier details, bill-to, PO number, subtotals, tax, grand total, payment terms, bank details, and notes.

` + promptRules + `
- Set "line_items" to [], do not extract line items

Return a JSON object with exactly this structure:
` + invoiceSchema + `

Invoice text:
---
%DOCUMENT%
---`
