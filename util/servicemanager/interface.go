package servicemanager

import "context"

// Service is a long-running component owned by the ServiceManager. Start must close readyCh once the
// service accepts work and block until ctx is cancelled.
type Service interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Init(ctx context.Context) error
	Start(ctx context.Context, readyCh chan<- struct{}) error
	Stop(ctx context.Context) error
}
