package client

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/areCodeOI/oiapi/pkg/request"
)

// BatchConcurrencyLimit is the default maximum number of concurrent exchanges in one batch.
const BatchConcurrencyLimit = 32

// BatchItem is one request of a batch.
// Empty fields fall back to the base config, see Client.ExecuteBatch.
type BatchItem struct {
	// Target is the relative path, the base config path is used if empty.
	Target string
	// Method defaults to GET.
	Method request.Method
	// Data is used if not nil, otherwise the data of the base config is used.
	Data any
	// Accept falls back to the base config format.
	Accept request.AcceptFormat
}

// compose creates a request definition from the base config, the base config is not modified.
func (i BatchItem) compose(base *request.Config) (*request.Config, error) {
	cfg := base.Clone()

	path := i.Target
	if path == "" {
		path = base.Path()
	}

	method := i.Method
	if method == 0 {
		method = request.MethodGet
	}

	data := i.Data
	if data == nil {
		data = base.Data()
	}

	if i.Accept != "" {
		cfg.SetAcceptFormat(i.Accept)
	}

	return cfg.Compose(method, path, data)
}

// ExecuteBatch performs all items concurrently, each item is composed from a clone of the base config.
// Headers, options and route of the base config are shared by all items.
// For example, the NoBody option enabled by a Head call on the base config applies to all items.
//
// Responses are returned in the order of the items.
// A transport failure of one item does not affect others, it is recorded in the Response.Error.
// If any item cannot be composed, nothing is sent and all composition errors are returned.
func (c Client) ExecuteBatch(ctx context.Context, base *request.Config, items []BatchItem) ([]*Response, error) {
	if base == nil {
		panic(fmt.Errorf("base config cannot be nil"))
	}

	// Compose all items before any exchange
	var errs error
	configs := make([]*request.Config, len(items))
	for i, item := range items {
		cfg, err := item.compose(base)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("batch item %d: %w", i, err))
			continue
		}
		configs[i] = cfg
	}
	if errs != nil {
		return nil, errs
	}

	// Dispatch
	wg := NewWaitGroup(ctx, c)
	for _, cfg := range configs {
		wg.Go(cfg)
	}
	return wg.Wait(), nil
}
