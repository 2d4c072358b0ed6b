package mastership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestManager_IsLeaderFalseForUnknownCluster(t *testing.T) {
	m := NewManager("", time.Minute, 0, zap.NewNop())
	assert.False(t, m.IsLeader("never-started"))
	assert.NoError(t, m.LastError("never-started"))
}
