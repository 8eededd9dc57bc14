package main

import (
	"github.com/sells-group/submit-service/internal/convert"
	"github.com/sells-group/submit-service/internal/dataset"
	"github.com/sells-group/submit-service/internal/download"
	"github.com/sells-group/submit-service/internal/fetcher"
	"github.com/sells-group/submit-service/internal/sample"
)

// services holds the pipelines shared by the serve, sample and download commands.
type services struct {
	Sampler   *sample.Sampler
	Resolver  *dataset.Resolver
	Downloads *download.Pipeline
}

// initServices builds the pipelines from the loaded configuration for the given run mode.
func initServices(mode string) (*services, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:     cfg.Fetch.UserAgent,
		HeaderTimeout: cfg.Fetch.HeaderTimeout(),
	})
	resolver := dataset.NewResolver(f, cfg.Download.MetadataURL)

	return &services{
		Resolver: resolver,
		Sampler: sample.New(f, sample.Options{
			Limit:   cfg.Sample.Limit,
			TempDir: cfg.Download.TempDir,
		}),
		Downloads: download.New(f, resolver, download.Options{
			TempDir: cfg.Download.TempDir,
			Convert: convert.Options{
				LonField:   cfg.Convert.LonField,
				LatField:   cfg.Convert.LatField,
				FlushEvery: cfg.Convert.FlushEvery,
			},
		}),
	}, nil
}
