package texsync

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

var (
	// ErrNilCreator is returned by NewUploader for a nil creator.
	ErrNilCreator = errors.New("texsync: nil texture creator")

	// ErrUnknownTexture is returned when an update names a texture that
	// was never created.
	ErrUnknownTexture = errors.New("texsync: update of unknown texture")

	// ErrNotUpdatable is returned when the GPU texture does not implement
	// gpucontext.TextureUpdater.
	ErrNotUpdatable = errors.New("texsync: texture does not support updates")
)

// textureDestroyer is implemented by GPU textures that own resources.
type textureDestroyer interface {
	Destroy()
}

// Uploader applies command batches to GPU textures made through a
// gpucontext.TextureCreator. It is the reference Renderer-side consumer of
// Queue output and is not safe for concurrent use.
type Uploader struct {
	creator  gpucontext.TextureCreator
	textures map[TextureID]gpucontext.Texture
}

// NewUploader returns an uploader that creates textures with creator.
func NewUploader(creator gpucontext.TextureCreator) (*Uploader, error) {
	if creator == nil {
		return nil, ErrNilCreator
	}
	return &Uploader{
		creator:  creator,
		textures: make(map[TextureID]gpucontext.Texture),
	}, nil
}

// Apply runs cmds in order. It stops at the first failure.
func (u *Uploader) Apply(cmds []Command) error {
	for _, c := range cmds {
		if err := u.apply(c); err != nil {
			return err
		}
	}
	return nil
}

func (u *Uploader) apply(c Command) error {
	switch c.Op {
	case OpCreate:
		u.destroy(c.Texture)
		tex, err := u.creator.NewTextureFromRGBA(c.Width, c.Height, toRGBA(c.Pixels, c.Format))
		if err != nil {
			return fmt.Errorf("texsync: create %v texture: %w", c.Texture, err)
		}
		u.textures[c.Texture] = tex
	case OpUpdate:
		tex, ok := u.textures[c.Texture]
		if !ok {
			return fmt.Errorf("%w: %v", ErrUnknownTexture, c.Texture)
		}
		updater, ok := tex.(gpucontext.TextureUpdater)
		if !ok {
			return fmt.Errorf("%w: %v", ErrNotUpdatable, c.Texture)
		}
		if err := updater.UpdateData(toRGBA(c.Pixels, c.Format)); err != nil {
			return fmt.Errorf("texsync: update %v texture: %w", c.Texture, err)
		}
	case OpDestroy:
		u.destroy(c.Texture)
	default:
		return fmt.Errorf("texsync: unknown op %d", c.Op)
	}
	return nil
}

func (u *Uploader) destroy(id TextureID) {
	tex, ok := u.textures[id]
	if !ok {
		return
	}
	if d, ok := tex.(textureDestroyer); ok {
		d.Destroy()
	}
	delete(u.textures, id)
}

// Texture returns the GPU texture for id.
func (u *Uploader) Texture(id TextureID) (gpucontext.Texture, bool) {
	tex, ok := u.textures[id]
	return tex, ok
}

// Close destroys every texture the uploader owns.
func (u *Uploader) Close() {
	for id := range u.textures {
		u.destroy(id)
	}
}

// toRGBA widens single-channel coverage to RGBA with every channel set to
// the coverage, which is premultiplied white.
func toRGBA(pixels []byte, format gputypes.TextureFormat) []byte {
	if format != gputypes.TextureFormatR8Unorm {
		return pixels
	}
	out := make([]byte, len(pixels)*4)
	for i, v := range pixels {
		o := out[i*4 : i*4+4 : i*4+4]
		o[0], o[1], o[2], o[3] = v, v, v, v
	}
	return out
}
