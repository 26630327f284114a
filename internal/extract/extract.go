package extract

import (
	"encoding/json"
	"strconv"
)

// Kind identifies which typed sub-value a field slot reads from the
// analysis result.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
	KindBoolean
)

// FieldSpec describes one slot of the extraction schema: the key under the
// result's fields object, the blob metadata key it is written to, and the
// value kind expected for it.
type FieldSpec struct {
	Source      string
	MetadataKey string
	Kind        Kind
}

// NoticeSchema is the fixed field set extracted from a tax notice. Adding a
// field is a data change here, not a structural one.
var NoticeSchema = []FieldSpec{
	{Source: "taxpayer_name", MetadataKey: "TaxpayerName", Kind: KindString},
	{Source: "tax_jurisdiction", MetadataKey: "TaxJurisdiction", Kind: KindString},
	{Source: "notice_type", MetadataKey: "NoticeType", Kind: KindString},
	{Source: "ein_tax_id", MetadataKey: "EinTaxId", Kind: KindString},
	{Source: "total_amount_due", MetadataKey: "TotalAmountDue", Kind: KindNumber},
	{Source: "filing_deadline", MetadataKey: "FilingDeadline", Kind: KindDate},
	{Source: "notice_number", MetadataKey: "NoticeNumber", Kind: KindString},
	{Source: "notice_date", MetadataKey: "NoticeDate", Kind: KindDate},
	{Source: "taxpayer_address", MetadataKey: "TaxpayerAddress", Kind: KindString},
	{Source: "tax_authority_address", MetadataKey: "TaxAuthorityAddress", Kind: KindString},
	{Source: "tax_period", MetadataKey: "TaxPeriod", Kind: KindString},
	{Source: "action_needed", MetadataKey: "ActionNeeded", Kind: KindString},
	{Source: "payment_instructions", MetadataKey: "PaymentInstructions", Kind: KindString},
	{Source: "payment_interest_breakdown", MetadataKey: "PaymentInterestBreakdown", Kind: KindString},
	{Source: "assessment_code_or_form_number", MetadataKey: "AssessmentCodeOrFormNumber", Kind: KindString},
	{Source: "tax_authority", MetadataKey: "TaxAuthority", Kind: KindString},
	{Source: "dispute_or_appeal_deadline", MetadataKey: "DisputeOrAppealDeadline", Kind: KindDate},
	{Source: "payment_coupon_remittance_slip", MetadataKey: "PaymentCouponRemittanceSlip", Kind: KindBoolean},
	{Source: "description", MetadataKey: "Description", Kind: KindString},
	{Source: "ein_tax_id_notes", MetadataKey: "EinTaxIdNotes", Kind: KindString},
	{Source: "employee_id_number", MetadataKey: "EmployeeIdNumber", Kind: KindNumber},
	{Source: "contact_phone_number", MetadataKey: "ContactPhoneNumber", Kind: KindString},
	{Source: "contact_fax_number", MetadataKey: "ContactFaxNumber", Kind: KindString},
	{Source: "contact_email_address", MetadataKey: "ContactEmailAddress", Kind: KindString},
}

// fieldValue holds the typed sub-values a field may carry. Exactly one is
// expected per slot; the others stay nil.
type fieldValue struct {
	ValueString  *string  `json:"valueString"`
	ValueNumber  *float64 `json:"valueNumber"`
	ValueDate    *string  `json:"valueDate"`
	ValueBoolean *bool    `json:"valueBoolean"`
}

type jobResult struct {
	Status string `json:"status"`
	Result struct {
		Contents []struct {
			Fields map[string]fieldValue `json:"fields"`
		} `json:"contents"`
	} `json:"result"`
}

// Extract maps a terminal analysis result onto the notice schema. It returns
// ok=false for a structurally invalid payload (not Succeeded, unparseable, or
// missing result.contents[0].fields) and never returns a partial map: a slot
// whose key is absent, or present without the expected typed sub-value, is
// rendered as the empty string.
func Extract(raw []byte) (map[string]string, bool) {
	var result jobResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}
	if result.Status != "Succeeded" {
		return nil, false
	}
	if len(result.Result.Contents) == 0 || result.Result.Contents[0].Fields == nil {
		return nil, false
	}

	fields := result.Result.Contents[0].Fields
	out := make(map[string]string, len(NoticeSchema))
	for _, spec := range NoticeSchema {
		out[spec.MetadataKey] = renderValue(fields[spec.Source], spec.Kind)
	}
	return out, true
}

// renderValue coerces one typed sub-value to its metadata string form.
// Number rendering uses the shortest decimal representation so repeated
// extraction of the same payload is byte-identical.
func renderValue(v fieldValue, kind Kind) string {
	switch kind {
	case KindString:
		if v.ValueString != nil {
			return *v.ValueString
		}
	case KindNumber:
		if v.ValueNumber != nil {
			return strconv.FormatFloat(*v.ValueNumber, 'f', -1, 64)
		}
	case KindDate:
		if v.ValueDate != nil {
			return *v.ValueDate
		}
	case KindBoolean:
		if v.ValueBoolean != nil {
			return strconv.FormatBool(*v.ValueBoolean)
		}
	}
	return ""
}
