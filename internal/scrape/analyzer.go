package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/net/html"

	"github.com/pagescope/scraper-engine/internal/core"
	"github.com/pagescope/scraper-engine/internal/domain/model"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// JSONLDAnalyzer builds a ProductSnapshot from the structured data embedded
// in fetched pages: JSON-LD documents first, meta tags as fallback. It stands
// in for richer analyzers behind the same port.
type JSONLDAnalyzer struct {
	eval JMESPathEvaluator
}

// JSONLDAnalyzerOptions configure the JSONLDAnalyzer.
type JSONLDAnalyzerOptions struct {
	Evaluator JMESPathEvaluator // Optional: defaults to the go-jmespath library
}

// NewJSONLDAnalyzer constructs a JSONLDAnalyzer.
func NewJSONLDAnalyzer(opts JSONLDAnalyzerOptions) *JSONLDAnalyzer {
	eval := opts.Evaluator
	if eval == nil {
		eval = jmespathLibEvaluator{}
	}
	return &JSONLDAnalyzer{eval: eval}
}

// Analyze extracts a ProductSnapshot from the fetched pages.
func (a *JSONLDAnalyzer) Analyze(ctx context.Context, pages []core.Page) (*model.ProductSnapshot, error) {
	if len(pages) == 0 {
		return nil, ErrNoContent
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var docs []any
	for _, page := range pages {
		docs = append(docs, extractJSONLD(page.HTML)...)
	}

	snapshot := &model.ProductSnapshot{}
	for _, doc := range docs {
		a.applyDoc(snapshot, doc)
	}

	// The landing page's head fills anything structured data left blank.
	meta := extractPageMeta(pages[0].HTML)
	applyMetaFallbacks(snapshot, pages[0].URL, meta)

	return snapshot, nil
}

// Queries run against each JSON-LD document. Missing fields evaluate to nil.
const (
	queryName         = `name`
	queryLegalName    = `legalName`
	queryDescription  = `description`
	queryURL          = `url`
	queryLogo         = `logo.url || logo`
	queryFoundingDate = `foundingDate`
	queryLocality     = `address.addressLocality`
	queryCountry      = `address.addressCountry.name || address.addressCountry`
	queryEmail        = `contactPoint.email || email`
	queryPhone        = `contactPoint.telephone || telephone`
	querySameAs       = `sameAs`
	queryOffers       = `offers[].{plan: name, amount: price, currency: priceCurrency} || offers.{plan: name, amount: price, currency: priceCurrency}`
	queryFeatures     = `featureList`
	queryIndustry     = `industry || applicationCategory`
)

// applyDoc folds one JSON-LD document into the snapshot, filling only fields
// that are still empty so earlier (landing page) documents win.
func (a *JSONLDAnalyzer) applyDoc(s *model.ProductSnapshot, doc any) {
	// @graph containers hold the real documents.
	if graph, err := a.eval.Evaluate(`"@graph"`, doc); err == nil && graph != nil {
		if items, ok := graph.([]any); ok {
			for _, item := range items {
				a.applyDoc(s, item)
			}
			return
		}
	}

	setString(&s.ProductName, a.str(doc, queryName))
	setString(&s.CompanyName, a.str(doc, queryLegalName))
	setString(&s.Description, a.str(doc, queryDescription))
	setString(&s.Website, a.str(doc, queryURL))
	setString(&s.LogoURL, a.str(doc, queryLogo))
	setString(&s.HQLocation, joinNonEmpty(a.str(doc, queryLocality), a.str(doc, queryCountry)))

	if year := parseYear(a.str(doc, queryFoundingDate)); year != 0 && s.FoundingYear == nil {
		s.FoundingYear = &year
	}

	if email, phone := a.str(doc, queryEmail), a.str(doc, queryPhone); email != "" || phone != "" {
		if s.Contact == nil {
			s.Contact = &model.ContactInfo{}
		}
		if email != "" && s.Contact.SupportEmail == nil {
			s.Contact.SupportEmail = &email
		}
		if phone != "" && s.Contact.PhoneNumber == nil {
			s.Contact.PhoneNumber = &phone
		}
	}

	if len(s.SocialLinks) == 0 {
		for _, link := range a.strSlice(doc, querySameAs) {
			s.SocialLinks = append(s.SocialLinks, model.SocialProfile{
				Platform: platformFromURL(link),
				URL:      link,
			})
		}
	}

	if len(s.Industry) == 0 {
		s.Industry = a.strSlice(doc, queryIndustry)
	}

	if len(s.Features) == 0 {
		for _, name := range a.strSlice(doc, queryFeatures) {
			s.Features = append(s.Features, model.Feature{Name: name})
		}
	}

	if len(s.PricingPlans) == 0 {
		s.PricingPlans = a.pricingPlans(doc)
	}
}

func (a *JSONLDAnalyzer) pricingPlans(doc any) []model.PricingPlan {
	result, err := a.eval.Evaluate(queryOffers, doc)
	if err != nil || result == nil {
		return nil
	}

	items, ok := result.([]any)
	if !ok {
		items = []any{result}
	}

	var plans []model.PricingPlan
	for _, item := range items {
		m, mok := item.(map[string]any)
		if !mok {
			continue
		}
		plan := model.PricingPlan{Plan: anyToString(m["plan"])}
		if plan.Plan == "" {
			continue
		}
		if amount := anyToString(m["amount"]); amount != "" {
			plan.Amount = &amount
			if amount == "0" {
				free := true
				plan.IsFree = &free
			}
		}
		if currency := anyToString(m["currency"]); currency != "" {
			plan.Currency = &currency
		}
		plans = append(plans, plan)
	}
	return plans
}

func (a *JSONLDAnalyzer) str(doc any, expr string) string {
	result, err := a.eval.Evaluate(expr, doc)
	if err != nil {
		return ""
	}
	return anyToString(result)
}

func (a *JSONLDAnalyzer) strSlice(doc any, expr string) []string {
	result, err := a.eval.Evaluate(expr, doc)
	if err != nil || result == nil {
		return nil
	}
	switch v := result.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
		return nil
	case []any:
		var out []string
		for _, item := range v {
			if s := anyToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// extractJSONLD parses every <script type="application/ld+json"> block on the
// page. Malformed blocks are skipped.
func extractJSONLD(rawHTML string) []any {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var docs []any
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && scriptType(n) == "application/ld+json" {
			if n.FirstChild != nil {
				var decoded any
				if jerr := json.Unmarshal([]byte(n.FirstChild.Data), &decoded); jerr == nil {
					// Top-level arrays hold multiple documents.
					if items, ok := decoded.([]any); ok {
						docs = append(docs, items...)
					} else {
						docs = append(docs, decoded)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return docs
}

func scriptType(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key == "type" {
			return strings.ToLower(strings.TrimSpace(attr.Val))
		}
	}
	return ""
}

// pageMeta holds head metadata from a single page.
type pageMeta struct {
	Title       string
	Description string
	SiteName    string
	H1          string
}

func extractPageMeta(rawHTML string) pageMeta {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return pageMeta{}
	}

	var meta pageMeta
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if meta.Title == "" && n.FirstChild != nil {
					meta.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name, property, content := metaAttrs(n)
				switch {
				case name == "description" && meta.Description == "":
					meta.Description = content
				case property == "og:site_name" && meta.SiteName == "":
					meta.SiteName = content
				case property == "og:description" && meta.Description == "":
					meta.Description = content
				}
			case "h1":
				if meta.H1 == "" {
					meta.H1 = strings.TrimSpace(textContent(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return meta
}

func metaAttrs(n *html.Node) (name, property, content string) {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "name":
			name = strings.ToLower(attr.Val)
		case "property":
			property = strings.ToLower(attr.Val)
		case "content":
			content = strings.TrimSpace(attr.Val)
		}
	}
	return name, property, content
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func applyMetaFallbacks(s *model.ProductSnapshot, pageURL string, meta pageMeta) {
	setString(&s.ProductName, meta.SiteName)
	setString(&s.ProductName, meta.H1)
	setString(&s.Description, meta.Description)
	setString(&s.Website, pageURL)

	if meta.Title != "" || meta.Description != "" || meta.H1 != "" {
		mk := &model.MetaKeysInfo{}
		if meta.Title != "" {
			mk.Title = &meta.Title
		}
		if meta.Description != "" {
			mk.Description = &meta.Description
		}
		if meta.H1 != "" {
			mk.H1 = &meta.H1
		}
		s.MetaKeys = mk
	}
}

// setString fills dst with value when dst is still empty.
func setString(dst **string, value string) {
	value = strings.TrimSpace(value)
	if *dst != nil || value == "" {
		return
	}
	*dst = &value
}

func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func joinNonEmpty(parts ...string) string {
	var filled []string
	for _, p := range parts {
		if p != "" {
			filled = append(filled, p)
		}
	}
	return strings.Join(filled, ", ")
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	var year int
	if _, err := fmt.Sscanf(date[:4], "%d", &year); err != nil {
		return 0
	}
	if year < 1500 || year > 3000 {
		return 0
	}
	return year
}

func platformFromURL(link string) string {
	lower := strings.ToLower(link)
	for _, p := range []string{"linkedin", "twitter", "x.com", "facebook", "instagram", "youtube", "github"} {
		if strings.Contains(lower, p) {
			if p == "x.com" {
				return "twitter"
			}
			return p
		}
	}
	return "other"
}

var _ core.Analyzer = (*JSONLDAnalyzer)(nil)
