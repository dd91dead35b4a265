package stages

import "context"

// FeedReader returns candidate topics from a content source. An empty
// result means the source had nothing to offer and is not an error.
type FeedReader interface {
	FetchTopics(ctx context.Context, source string, limit int) ([]string, error)
}

// Completer generates text for a prompt. model may be empty to use the
// client's default.
type Completer interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// PaymentLinker creates a hosted checkout link for a product.
type PaymentLinker interface {
	CreatePaymentLink(ctx context.Context, productName string, priceMinor int64) (string, error)
}

// SiteDeployer publishes a static site and returns its public URL.
type SiteDeployer interface {
	Deploy(ctx context.Context, project string, files map[string]string) (string, error)
}
