package exchange

import "net/http"

func init() {
	RegisterProvider("rest", buildRESTAdapter)
}

// buildRESTAdapter wires a ProviderConfig into a RESTClient, attaching a
// WalletSigner when a private key is configured.
func buildRESTAdapter(name string, cfg *ProviderConfig) (Adapter, error) {
	opts := []ClientOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.PrivateKey != "" {
		signer, err := NewWalletSigner(cfg.PrivateKey, cfg.ChainID)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSigner(signer, cfg.APIKey))
	}
	return NewRESTClient(opts...), nil
}
