// Package mocks provides mock implementations for testing the gateway's auth ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockBackend := mocks.NewMockBackendClient(ctrl)
//	mockBackend.EXPECT().FetchProfile(gomock.Any(), gomock.Any()).Return(payload, nil)
package mocks

// Generate mock for BackendClient interface from internal/ports package.
// This creates MockBackendClient with methods for all BackendClient interface methods:
// Login, FetchProfile, Logout
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=backend_client_mock.go github.com/congresoumg/portal-gateway/internal/ports BackendClient

// Generate mock for AuditRecorder interface from internal/ports package.
// This creates MockAuditRecorder with methods for all AuditRecorder interface methods:
// Record, Recent
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=audit_recorder_mock.go github.com/congresoumg/portal-gateway/internal/ports AuditRecorder
