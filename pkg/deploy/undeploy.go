package deploy

import (
	"os"

	"github.com/arthur-debert/claupack/pkg/types"
)

// Undeploy removes deployed targets from the extension directory,
// returning the target paths that are gone afterwards. A target that
// was already missing counts as removed; a target that cannot be
// removed is reported in failed and left tracked.
func (e *Engine) Undeploy(files []types.DeployedFile) (removed []string, failed []string) {
	for _, df := range files {
		err := e.fs.Remove(df.Target)
		if err != nil && !os.IsNotExist(err) {
			e.logger.Warn().Err(err).Str("target", df.Target).Msg("cannot remove deployed file")
			failed = append(failed, df.Target)
			continue
		}
		removed = append(removed, df.Target)
	}
	return removed, failed
}
