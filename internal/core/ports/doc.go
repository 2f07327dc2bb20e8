// Package ports declares the interfaces between the ledger core and its adapters.
package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks
//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks
//go:generate mockgen -source=health.go -destination=mocks/mock_health.go -package=mocks
