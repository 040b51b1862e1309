package credentials

import (
	"testing"

	"github.com/BaSui01/crewstudio/llm/catalog"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// 对任意 Provider 与角色，同时存在角色凭据与共享凭据时，总是返回角色凭据。
func TestProperty_RoleScopedCredentialWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	kinds := make([]interface{}, 0, len(catalog.AllKinds()))
	for _, k := range catalog.AllKinds() {
		kinds = append(kinds, k)
	}
	roles := []interface{}{RoleManager, RoleWorker, RoleSingle}

	properties.Property("role-scoped key beats shared key regardless of write order", prop.ForAll(
		func(kind catalog.Kind, role Role, scoped, shared string, sharedFirst bool) bool {
			s := NewStore()
			if sharedFirst {
				s.SetShared(kind, shared)
				s.Set(kind, role, scoped)
			} else {
				s.Set(kind, role, scoped)
				s.SetShared(kind, shared)
			}
			got, src := s.Resolve(kind, role)
			return got == scoped && src == SourceRole
		},
		gen.OneConstOf(kinds...),
		gen.OneConstOf(roles...),
		gen.Identifier(),
		gen.Identifier(),
		gen.Bool(),
	))

	properties.Property("writing one role never clears another", prop.ForAll(
		func(kind catalog.Kind, a, b string) bool {
			s := NewStore()
			s.Set(kind, RoleManager, a)
			s.Set(kind, RoleWorker, b)
			gotA, _ := s.Resolve(kind, RoleManager)
			gotB, _ := s.Resolve(kind, RoleWorker)
			return gotA == a && gotB == b
		},
		gen.OneConstOf(kinds...),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
