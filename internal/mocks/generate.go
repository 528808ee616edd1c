// Package mocks provides mock implementations for testing the scraper engine.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the extraction ports. The mocks are generated using go:generate directives
// and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	fetcher := mocks.NewMockFetcher(ctrl)
//	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).Return(pages, nil)
package mocks

// Generate mock for the Fetcher interface from internal/core.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=fetcher_mock.go github.com/pagescope/scraper-engine/internal/core Fetcher

// Generate mock for the Analyzer interface from internal/core.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=analyzer_mock.go github.com/pagescope/scraper-engine/internal/core Analyzer
