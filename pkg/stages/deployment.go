package stages

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/rs/zerolog"

	"github.com/petrijr/auraflow/pkg/api"
)

const (
	DefaultPriceMinor = 999

	projectPrefix = "auraflow-venture-"
)

//go:embed templates/landing/*
var landingFS embed.FS

var landingTemplate = template.Must(template.ParseFS(landingFS, "templates/landing/index.html.tmpl"))

// CopyResult is the outcome of marketing copy generation: either the
// model's copy or the deterministic fallback.
type CopyResult struct {
	Copy   api.MarketingCopy
	Source api.CopySource
	// Err is why the fallback was used; nil for primary copy.
	Err error
}

// Primary wraps generated copy.
func Primary(c api.MarketingCopy) CopyResult {
	return CopyResult{Copy: c, Source: api.CopyPrimary}
}

// Fallback returns the default copy for topic, recording why it was needed.
func Fallback(topic string, cause error) CopyResult {
	return CopyResult{
		Copy: api.MarketingCopy{
			Headline:      "Your Guide to " + topic,
			Subheader:     "Discover the secrets to success.",
			CTAButtonText: "Buy Now",
			Features:      []string{"In-depth chapters", "Actionable advice", "Expert insights"},
		},
		Source: api.CopyFallback,
		Err:    cause,
	}
}

// Deployment creates a payment link and publishes the landing page.
//
// Copy generation never fails the stage; payment link creation and the
// site deployment do.
type Deployment struct {
	Completer Completer
	Payments  PaymentLinker
	Deployer  SiteDeployer

	// PriceMinor is the product price in minor currency units; <= 0 means
	// DefaultPriceMinor.
	PriceMinor int64
	Model      string

	Logger zerolog.Logger
}

var _ api.StageExecutor = (*Deployment)(nil)

func (d *Deployment) Execute(ctx context.Context, in api.StageInput) (any, error) {
	if in.NicheIdea == nil {
		return nil, &api.PreconditionError{Field: api.FieldNicheIdea, Reason: api.ReasonAbsent}
	}
	topic := in.NicheIdea.ChosenTopic
	log := d.Logger.With().Str("venture_id", in.Venture.ID).Str("topic", topic).Logger()

	copyResult := d.GenerateCopy(ctx, topic)
	if copyResult.Source == api.CopyFallback {
		log.Warn().Err(copyResult.Err).Msg("using fallback marketing copy")
	}

	price := d.PriceMinor
	if price <= 0 {
		price = DefaultPriceMinor
	}
	paymentURL, err := d.Payments.CreatePaymentLink(ctx, topic, price)
	if err != nil {
		return nil, fmt.Errorf("create payment link: %w", err)
	}
	log.Info().Str("payment_link", paymentURL).Int64("price_minor", price).Msg("payment link created")

	files, err := RenderLandingPage(topic, copyResult.Copy, paymentURL)
	if err != nil {
		return nil, err
	}

	project := ProjectName(in.Venture.ID)
	siteURL, err := d.Deployer.Deploy(ctx, project, files)
	if err != nil {
		return nil, fmt.Errorf("deploy landing page: %w", err)
	}
	log.Info().Str("project", project).Str("url", siteURL).Msg("landing page deployed")

	return api.SalesDetails{
		LandingPageURL: siteURL,
		PaymentLinkURL: paymentURL,
		ProjectName:    project,
		Copy:           copyResult.Copy,
		CopySource:     copyResult.Source,
	}, nil
}

// GenerateCopy asks the model for landing page copy, falling back to the
// default copy when the call fails or the reply is unusable.
func (d *Deployment) GenerateCopy(ctx context.Context, topic string) CopyResult {
	completion, err := d.Completer.Complete(ctx, copyPrompt(topic), d.Model)
	if err != nil {
		return Fallback(topic, err)
	}

	var c api.MarketingCopy
	if err := decodeCompletion(completion, &c); err != nil {
		return Fallback(topic, fmt.Errorf("parse marketing copy: %w", err))
	}
	if strings.TrimSpace(c.Headline) == "" {
		return Fallback(topic, fmt.Errorf("parse marketing copy: headline is empty"))
	}

	// Partially filled copy keeps what the model produced.
	if c.Subheader == "" {
		c.Subheader = "Unlock your potential."
	}
	if c.CTAButtonText == "" {
		c.CTAButtonText = "Buy Now"
	}
	return Primary(c)
}

// RenderLandingPage returns the static site files for a product.
func RenderLandingPage(title string, c api.MarketingCopy, paymentURL string) (map[string]string, error) {
	var buf bytes.Buffer
	err := landingTemplate.Execute(&buf, struct {
		Title       string
		Copy        api.MarketingCopy
		PaymentLink string
	}{title, c, paymentURL})
	if err != nil {
		return nil, fmt.Errorf("render landing page: %w", err)
	}

	css, err := landingFS.ReadFile("templates/landing/style.css")
	if err != nil {
		return nil, fmt.Errorf("read stylesheet: %w", err)
	}

	return map[string]string{
		"index.html": buf.String(),
		"style.css":  string(css),
	}, nil
}

// ProjectName derives the hosting project name from a venture id.
func ProjectName(ventureID string) string {
	id := ventureID
	if len(id) > 8 {
		id = id[:8]
	}
	return projectPrefix + id
}

func copyPrompt(topic string) string {
	return fmt.Sprintf(`Write landing page copy for an e-book titled %q.
Reply with a JSON object only, using these keys:
- "headline": a catchy headline
- "subheader": a short, persuasive subheader
- "cta_button_text": the call to action button label, e.g. "Get It Now"
- "features": a list of 3 or 4 key benefits`, topic)
}
