package core

import (
	"time"

	"github.com/rs/zerolog"
)

// Deps are the collaborators the services need besides the database.
type Deps struct {
	Exporters  Exporters
	Uploader   Uploader
	Dispatcher Dispatcher
	Payments   PaymentClient
	Now        func() time.Time
	Logger     zerolog.Logger
}

type Services struct {
	Backup     *BackupService
	Usage      *UsageService
	Connection *ConnectionService
	Plan       *PlanService
}

func NewServices(db DB, deps Deps) *Services {
	conns := NewConnectionService(db)
	usage := NewUsageService(db)
	return &Services{
		Backup:     NewBackupService(db, conns, usage, deps.Exporters, deps.Uploader, deps.Dispatcher, deps.Now, deps.Logger),
		Usage:      usage,
		Connection: conns,
		Plan:       NewPlanService(db, deps.Payments),
	}
}
