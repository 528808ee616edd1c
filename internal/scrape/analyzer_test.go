package scrape

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagescope/scraper-engine/internal/core"
)

const organizationPage = `<html>
<head>
<title>Acme | Home</title>
<meta name="description" content="Acme makes widgets.">
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Organization",
  "name": "Acme",
  "legalName": "Acme Inc.",
  "description": "Widget automation for everyone.",
  "url": "https://acme.example.com",
  "logo": {"url": "https://acme.example.com/logo.png"},
  "foundingDate": "2014-03-01",
  "address": {"addressLocality": "Austin", "addressCountry": "US"},
  "contactPoint": {"email": "support@acme.example.com", "telephone": "+1-555-0100"},
  "sameAs": ["https://www.linkedin.com/company/acme", "https://x.com/acme"]
}
</script>
</head>
<body><h1>Acme widgets</h1></body>
</html>`

const pricingPage = `<html><body>
<script type="application/ld+json">
{
  "@type": "Product",
  "name": "Acme Platform",
  "applicationCategory": "Automation",
  "featureList": ["Scheduling", "Reporting"],
  "offers": [
    {"name": "Free", "price": 0, "priceCurrency": "USD"},
    {"name": "Pro", "price": 49.9, "priceCurrency": "USD"}
  ]
}
</script>
</body></html>`

func TestJSONLDAnalyzer_Analyze_OrganizationDocument(t *testing.T) {
	analyzer := NewJSONLDAnalyzer(JSONLDAnalyzerOptions{})

	snapshot, err := analyzer.Analyze(context.Background(), []core.Page{
		{URL: "https://acme.example.com/", HTML: organizationPage},
	})
	require.NoError(t, err)

	require.NotNil(t, snapshot.ProductName)
	assert.Equal(t, "Acme", *snapshot.ProductName)
	require.NotNil(t, snapshot.CompanyName)
	assert.Equal(t, "Acme Inc.", *snapshot.CompanyName)
	require.NotNil(t, snapshot.Description)
	assert.Equal(t, "Widget automation for everyone.", *snapshot.Description)
	require.NotNil(t, snapshot.Website)
	assert.Equal(t, "https://acme.example.com", *snapshot.Website)
	require.NotNil(t, snapshot.LogoURL)
	assert.Equal(t, "https://acme.example.com/logo.png", *snapshot.LogoURL)
	require.NotNil(t, snapshot.FoundingYear)
	assert.Equal(t, 2014, *snapshot.FoundingYear)
	require.NotNil(t, snapshot.HQLocation)
	assert.Equal(t, "Austin, US", *snapshot.HQLocation)

	require.NotNil(t, snapshot.Contact)
	require.NotNil(t, snapshot.Contact.SupportEmail)
	assert.Equal(t, "support@acme.example.com", *snapshot.Contact.SupportEmail)
	require.NotNil(t, snapshot.Contact.PhoneNumber)
	assert.Equal(t, "+1-555-0100", *snapshot.Contact.PhoneNumber)

	require.Len(t, snapshot.SocialLinks, 2)
	assert.Equal(t, "linkedin", snapshot.SocialLinks[0].Platform)
	assert.Equal(t, "twitter", snapshot.SocialLinks[1].Platform)
}

func TestJSONLDAnalyzer_Analyze_ProductOffersAndFeatures(t *testing.T) {
	analyzer := NewJSONLDAnalyzer(JSONLDAnalyzerOptions{})

	snapshot, err := analyzer.Analyze(context.Background(), []core.Page{
		{URL: "https://acme.example.com/", HTML: organizationPage},
		{URL: "https://acme.example.com/pricing", HTML: pricingPage},
	})
	require.NoError(t, err)

	// Organization doc on the landing page wins the name.
	require.NotNil(t, snapshot.ProductName)
	assert.Equal(t, "Acme", *snapshot.ProductName)

	assert.Equal(t, []string{"Automation"}, snapshot.Industry)

	require.Len(t, snapshot.Features, 2)
	assert.Equal(t, "Scheduling", snapshot.Features[0].Name)

	require.Len(t, snapshot.PricingPlans, 2)
	free := snapshot.PricingPlans[0]
	assert.Equal(t, "Free", free.Plan)
	require.NotNil(t, free.Amount)
	assert.Equal(t, "0", *free.Amount)
	require.NotNil(t, free.IsFree)
	assert.True(t, *free.IsFree)

	pro := snapshot.PricingPlans[1]
	assert.Equal(t, "Pro", pro.Plan)
	require.NotNil(t, pro.Amount)
	assert.Equal(t, "49.9", *pro.Amount)
	require.NotNil(t, pro.Currency)
	assert.Equal(t, "USD", *pro.Currency)
	assert.Nil(t, pro.IsFree)
}

func TestJSONLDAnalyzer_Analyze_GraphContainer(t *testing.T) {
	page := `<html><body>
<script type="application/ld+json">
{"@graph": [
  {"@type": "WebSite", "name": "Acme"},
  {"@type": "Organization", "legalName": "Acme GmbH"}
]}
</script>
</body></html>`

	analyzer := NewJSONLDAnalyzer(JSONLDAnalyzerOptions{})
	snapshot, err := analyzer.Analyze(context.Background(), []core.Page{
		{URL: "https://acme.example.com/", HTML: page},
	})
	require.NoError(t, err)

	require.NotNil(t, snapshot.ProductName)
	assert.Equal(t, "Acme", *snapshot.ProductName)
	require.NotNil(t, snapshot.CompanyName)
	assert.Equal(t, "Acme GmbH", *snapshot.CompanyName)
}

func TestJSONLDAnalyzer_Analyze_MetaFallbacks(t *testing.T) {
	page := `<html>
<head>
<title>Acme - Widgets</title>
<meta name="description" content="Widgets at scale.">
<meta property="og:site_name" content="Acme">
</head>
<body><h1>Welcome to Acme</h1></body>
</html>`

	analyzer := NewJSONLDAnalyzer(JSONLDAnalyzerOptions{})
	snapshot, err := analyzer.Analyze(context.Background(), []core.Page{
		{URL: "https://acme.example.com/", HTML: page},
	})
	require.NoError(t, err)

	require.NotNil(t, snapshot.ProductName)
	assert.Equal(t, "Acme", *snapshot.ProductName)
	require.NotNil(t, snapshot.Description)
	assert.Equal(t, "Widgets at scale.", *snapshot.Description)
	require.NotNil(t, snapshot.Website)
	assert.Equal(t, "https://acme.example.com/", *snapshot.Website)

	require.NotNil(t, snapshot.MetaKeys)
	require.NotNil(t, snapshot.MetaKeys.Title)
	assert.Equal(t, "Acme - Widgets", *snapshot.MetaKeys.Title)
	require.NotNil(t, snapshot.MetaKeys.H1)
	assert.Equal(t, "Welcome to Acme", *snapshot.MetaKeys.H1)
}

func TestJSONLDAnalyzer_Analyze_SkipsMalformedBlocks(t *testing.T) {
	page := `<html><body>
<script type="application/ld+json">not valid json</script>
<script type="application/ld+json">{"name": "Acme"}</script>
</body></html>`

	analyzer := NewJSONLDAnalyzer(JSONLDAnalyzerOptions{})
	snapshot, err := analyzer.Analyze(context.Background(), []core.Page{
		{URL: "https://acme.example.com/", HTML: page},
	})
	require.NoError(t, err)
	require.NotNil(t, snapshot.ProductName)
	assert.Equal(t, "Acme", *snapshot.ProductName)
}

func TestJSONLDAnalyzer_Analyze_NoPages(t *testing.T) {
	analyzer := NewJSONLDAnalyzer(JSONLDAnalyzerOptions{})
	_, err := analyzer.Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestParseYear(t *testing.T) {
	assert.Equal(t, 2014, parseYear("2014-03-01"))
	assert.Equal(t, 1999, parseYear("1999"))
	assert.Equal(t, 0, parseYear("14"))
	assert.Equal(t, 0, parseYear("0001-01-01"))
	assert.Equal(t, 0, parseYear(""))
}

func TestPlatformFromURL(t *testing.T) {
	assert.Equal(t, "linkedin", platformFromURL("https://www.linkedin.com/company/acme"))
	assert.Equal(t, "twitter", platformFromURL("https://x.com/acme"))
	assert.Equal(t, "github", platformFromURL("https://github.com/acme"))
	assert.Equal(t, "other", platformFromURL("https://mastodon.social/@acme"))
}
