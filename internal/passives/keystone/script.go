package keystone

import (
	lua "github.com/Shopify/go-lua"

	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"

	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
)

// runScript executes a keystone script in a fresh Lua state. The script
// sees a global `stats` table keyed by stat name and a global `allocated`
// count, and mutates `stats` in place. Each call gets its own state so a
// script cannot leak globals into the next one.
func runScript(script string, v stats.Vector, allocatedCount int) (stats.Vector, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)

	// Scripts compute stats; they have no business touching the host.
	l.PushNil()
	l.SetGlobal("os")
	l.PushNil()
	l.SetGlobal("io")

	names := stats.FieldNames()
	l.CreateTable(0, len(names))
	for f, name := range names {
		l.PushNumber(v[stats.Field(f)])
		l.SetField(-2, name)
	}
	l.SetGlobal("stats")
	l.PushInteger(allocatedCount)
	l.SetGlobal("allocated")

	if err := lua.LoadString(l, script); err != nil {
		return v, apperrors.Wrap(apperrors.CodeKeystoneScriptFailed, "keystone script did not compile", err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return v, apperrors.Wrap(apperrors.CodeKeystoneScriptFailed, "keystone script failed", err)
	}

	l.Global("stats")
	if l.TypeOf(-1) != lua.TypeTable {
		return v, apperrors.New(apperrors.CodeKeystoneScriptFailed, "keystone script replaced the stats table")
	}
	out := v
	for f, name := range names {
		l.Field(-1, name)
		if n, ok := l.ToNumber(-1); ok {
			out[stats.Field(f)] = n
		}
		l.Pop(1)
	}
	l.Pop(1)
	return out, nil
}
