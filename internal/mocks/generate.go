// Package mocks provides gomock implementations of the collaborator
// interfaces used by the job handlers.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	provider := mocks.NewMockProvider(ctrl)
//	provider.EXPECT().Latest(gomock.Any(), "AAPL").Return(marketdata.Bar{Close: 180}, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=provider_mock.go github.com/jdziat/portfolio-jobs/internal/marketdata Provider
