package traces

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudscore/internal/logging"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "", logging.Discard())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpanAndEnd(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "pipeline.features", Rows(10), Columns(3), RunID("run_x"))
	assert.NotNil(t, ctx)
	End(span, errors.New("boom"))

	_, span = StartSpan(ctx, "pipeline.score", Family("gbdt_deep"), ArtifactVersion(2))
	End(span, nil)
}
