package jwt_test

import (
	"testing"

	jwtx "github.com/dropDatabas3/checkjohn/internal/jwt"
)

func TestIdentity_Scopes(t *testing.T) {
	cases := []struct {
		name  string
		claim any
		want  []string
	}{
		{"space separated", "profile api:read", []string{"profile", "api:read"}},
		{"single", "profile", []string{"profile"}},
		{"json list", []any{"profile", "api:read"}, []string{"profile", "api:read"}},
		{"empty string", "", nil},
		{"wrong type", 42, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := &jwtx.Identity{Claims: map[string]any{"scope": tc.claim}}
			got := id.Scopes()
			if len(got) != len(tc.want) {
				t.Fatalf("Scopes() = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("Scopes() = %v, want %v", got, tc.want)
				}
			}
		})
	}

	noScope := &jwtx.Identity{Claims: map[string]any{}}
	if s := noScope.Scopes(); s != nil {
		t.Fatalf("without scope claim: %v", s)
	}
}

func TestIdentity_HasScope(t *testing.T) {
	id := &jwtx.Identity{Claims: map[string]any{"scope": "profile api:read"}}
	if !id.HasScope("api:read") {
		t.Fatalf("api:read should be present")
	}
	if id.HasScope("api:write") {
		t.Fatalf("api:write should be absent")
	}
	if id.HasScope("api") {
		t.Fatalf("scope match must be exact, not prefix")
	}
}

func TestIdentity_SystemClaim(t *testing.T) {
	// Forma plana: un claim por entrada namespaced
	flat := &jwtx.Identity{
		Issuer: "https://id.test/",
		Claims: map[string]any{
			"https://id.test/claims/sys/tenant": "acme",
		},
	}
	if v, ok := flat.SystemClaim("tenant"); !ok || v != "acme" {
		t.Fatalf("flat form: %v, %v", v, ok)
	}

	// Forma anidada: el namespace completo como objeto
	nested := &jwtx.Identity{
		Issuer: "https://id.test",
		Claims: map[string]any{
			"https://id.test/claims/sys": map[string]any{"tenant": "acme"},
		},
	}
	if v, ok := nested.SystemClaim("tenant"); !ok || v != "acme" {
		t.Fatalf("nested form: %v, %v", v, ok)
	}

	if _, ok := flat.SystemClaim("nope"); ok {
		t.Fatalf("absent sys claim should miss")
	}
}
