package credentials

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/BaSui01/crewstudio/llm/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, in := range []string{"manager", "WORKER", " single "} {
		_, err := ParseRole(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseRole("director")
	assert.Error(t, err)
}

func TestRole_EnvSuffix(t *testing.T) {
	assert.Equal(t, "MANAGER", RoleManager.EnvSuffix())
	assert.Equal(t, "WORKER", RoleWorker.EnvSuffix())
	assert.Equal(t, "WORKER", RoleSingle.EnvSuffix())
}

func TestStore_ResolveOrder(t *testing.T) {
	s := NewStore()
	v, src := s.Resolve(catalog.KindOpenAI, RoleManager)
	assert.Empty(t, v)
	assert.Equal(t, SourceMissing, src)

	s.SetShared(catalog.KindOpenAI, "shared")
	v, src = s.Resolve(catalog.KindOpenAI, RoleManager)
	assert.Equal(t, "shared", v)
	assert.Equal(t, SourceShared, src)

	s.Set(catalog.KindOpenAI, RoleManager, "mgr")
	v, src = s.Resolve(catalog.KindOpenAI, RoleManager)
	assert.Equal(t, "mgr", v)
	assert.Equal(t, SourceRole, src)

	// 写入 manager 不影响 worker
	v, _ = s.Resolve(catalog.KindOpenAI, RoleWorker)
	assert.Equal(t, "shared", v)

	// single 与 worker 共用槽位
	s.Set(catalog.KindOpenAI, RoleSingle, "single")
	v, _ = s.Resolve(catalog.KindOpenAI, RoleWorker)
	assert.Equal(t, "single", v)
}

func TestStore_OverwriteAndBlank(t *testing.T) {
	s := NewStore()
	s.Set(catalog.KindGroq, RoleWorker, "one")
	s.Set(catalog.KindGroq, RoleWorker, "two")
	s.Set(catalog.KindGroq, RoleWorker, "   ")
	v, _ := s.Resolve(catalog.KindGroq, RoleWorker)
	assert.Equal(t, "two", v)
}

func TestStore_CloneIsIndependent(t *testing.T) {
	s := NewStore()
	s.SetShared(catalog.KindAnthropic, "base")
	c := s.Clone()
	c.SetShared(catalog.KindAnthropic, "changed")
	c.SetSearchKey("serper")

	v, _ := s.Resolve(catalog.KindAnthropic, RoleWorker)
	assert.Equal(t, "base", v)
	assert.Empty(t, s.SearchKey())
	assert.Equal(t, "serper", c.SearchKey())
}

func TestStore_ListingKey(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.ListingKey(catalog.KindOpenAI))
	s.Set(catalog.KindOpenAI, RoleWorker, "w")
	assert.Equal(t, "w", s.ListingKey(catalog.KindOpenAI))
	s.Set(catalog.KindOpenAI, RoleManager, "m")
	assert.Equal(t, "m", s.ListingKey(catalog.KindOpenAI))
}

func TestStore_NeverLeaksSecrets(t *testing.T) {
	s := NewStore()
	s.Set(catalog.KindOpenAI, RoleManager, "sk-proj-supersecret-1234")
	s.SetSearchKey("serper-secret-abcd")

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "supersecret")
	assert.Contains(t, string(data), "****1234")
	assert.NotContains(t, fmt.Sprint(s), "supersecret")

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, Entry{Provider: "openai", Scope: "manager", Masked: "****1234"}, snap[0])
	assert.Equal(t, "****", Mask("short"))
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set(catalog.KindZhipu, RoleManager, fmt.Sprintf("key-%d", i))
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Resolve(catalog.KindZhipu, RoleManager)
			_ = s.Clone()
		}()
	}
	wg.Wait()
	_, src := s.Resolve(catalog.KindZhipu, RoleManager)
	assert.Equal(t, SourceRole, src)
}
