package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-research/audience/internal/domain"
)

// The documented template must import cleanly, otherwise we are handing
// users a broken example.
func TestTemplateImportsCleanly(t *testing.T) {
	st := newFakeStore()
	res := newTestPipeline(t, st).Run(context.Background(), Template(), Options{SkipDuplicates: true})

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Imported)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.SegmentWarnings)

	cleo := st.subs["cleo@example.net"]
	require.NotNil(t, cleo)
	assert.False(t, cleo.Subscribed)
	assert.Equal(t, "fr", cleo.Language)
	assert.Equal(t, []domain.CanonicalSegment{domain.SegmentKOLs}, cleo.Segments)
}
