package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ColaMonitor/internal/domain"
)

// AttachmentEndpoint is the registry path that serves label images.
const AttachmentEndpoint = "publicViewAttachment.do"

func parse(markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	return doc
}

// HiddenFields collects name/value pairs of every <input type="hidden">.
// Inputs without a name are ignored; a missing value maps to "".
func HiddenFields(markup string) map[string]string {
	fields := map[string]string{}
	doc := parse(markup)
	if doc == nil {
		return fields
	}

	doc.Find("input").Each(func(_ int, input *goquery.Selection) {
		if !strings.EqualFold(strings.TrimSpace(input.AttrOr("type", "")), "hidden") {
			return
		}
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		fields[name] = input.AttrOr("value", "")
	})
	return fields
}

// ImageFilenames returns every attachment filename referenced by an <img>
// in document order. The first entry is the front label by convention.
func ImageFilenames(markup string) []string {
	doc := parse(markup)
	if doc == nil {
		return nil
	}

	var names []string
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", "")
		if !strings.Contains(src, AttachmentEndpoint) {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		if name := ref.Query().Get("filename"); name != "" {
			names = append(names, name)
		}
	})
	return names
}

// LabelText finds the first case-insensitive occurrence of label that is
// followed by text and returns that text up to the next tag, trimmed.
// This is a heuristic: a label repeated on the page, or one that appears
// inside attribute text, captures whatever follows that first occurrence.
func LabelText(markup, label string) domain.OptionalText {
	if label == "" {
		return domain.OptionalText{}
	}
	expr, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(label) + `[\s:]*([^<]+)`)
	if err != nil {
		return domain.OptionalText{}
	}
	m := expr.FindStringSubmatch(markup)
	if m == nil {
		return domain.OptionalText{}
	}
	return domain.Text(strings.TrimSpace(m[1]))
}

// Detail labels as printed on the public detail page.
const (
	FieldPermitNumber      = "Permit Number"
	FieldSerialNumber      = "Serial #"
	FieldCompletedDate     = "Completed Date"
	FieldFancifulName      = "Fanciful Name"
	FieldBrandName         = "Brand Name"
	FieldOrigin            = "Origin"
	FieldOriginCode        = "Origin Code"
	FieldClassType         = "Class/Type"
	FieldClassTypeCode     = "Class/Type Code"
	FieldStatus            = "Status"
	FieldVendorCode        = "Vendor Code"
	FieldTypeOfApplication = "Type of Application"
	FieldApprovalDate      = "Approval Date"
)

// Detail applies LabelText for every known field of the detail page.
func Detail(ttbID, markup string) domain.LabelDetail {
	get := func(label string) domain.OptionalText {
		return LabelText(markup, label)
	}
	return domain.LabelDetail{
		TTBID:             ttbID,
		PermitNo:          get(FieldPermitNumber),
		SerialNumber:      get(FieldSerialNumber),
		CompletedDate:     get(FieldCompletedDate),
		FancifulName:      get(FieldFancifulName),
		BrandName:         get(FieldBrandName),
		Origin:            get(FieldOrigin),
		OriginDesc:        get(FieldOriginCode),
		ClassType:         get(FieldClassType),
		ClassTypeDesc:     get(FieldClassTypeCode),
		Status:            get(FieldStatus),
		VendorCode:        get(FieldVendorCode),
		TypeOfApplication: get(FieldTypeOfApplication),
		ApprovalDate:      get(FieldApprovalDate),
	}
}
