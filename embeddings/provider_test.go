package embeddings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/embeddings"
)

type fakeProvider struct {
	dims int
}

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, f.dims)
	for i := range vec {
		vec[i] = float32(len(text))
	}
	return vec, nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeProvider) ModelID() string { return "fake" }
func (f *fakeProvider) Dimensions() int { return f.dims }

func TestFunc_AdaptsProviderEmbed(t *testing.T) {
	p := &fakeProvider{dims: 4}
	fn := embeddings.Func(p)
	require.NotNil(t, fn)

	vec, err := fn(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 5, 5, 5}, vec)
}

func TestFunc_NilProviderReturnsNilFunc(t *testing.T) {
	fn := embeddings.Func(nil)
	assert.Nil(t, fn)
}
