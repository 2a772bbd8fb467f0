package pipeline

import (
	"github.com/banshee-data/terrain.diffusion/internal/diffusion"
)

// Session is a denoiser acquired for one pipeline call. The pipeline closes
// it on every exit path.
type Session interface {
	diffusion.Denoiser
	Close() error
}

// SessionFactory opens a fresh Session.
type SessionFactory func() (Session, error)

type staticSession struct {
	diffusion.Denoiser
}

func (staticSession) Close() error { return nil }

// StaticSession hands out d for every call and never closes it. The caller
// keeps ownership of d.
func StaticSession(d diffusion.Denoiser) SessionFactory {
	return func() (Session, error) {
		return staticSession{d}, nil
	}
}
