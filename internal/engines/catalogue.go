package engines

import (
	"github.com/smallbiznis/incomeengine/internal/cadence"
	"github.com/smallbiznis/incomeengine/internal/engine/domain"
)

// Default cadences, overridable per engine through engines.yml.
var defaultCadences = map[string]string{
	ContentWriterName:   "0 */6 * * *",
	AffiliateBlogName:   "0 */8 * * *",
	MicroTasksName:      "0 */4 * * *",
	PrintOnDemandName:   "0 9,21 * * *",
	SocialMediaName:     "0 8,14,20 * * *",
	FreelanceBidderName: "0 */12 * * *",
}

// Catalogue returns the built-in engines in their fixed registration order.
func Catalogue(deps Deps) []domain.Registration {
	engines := []domain.Engine{
		NewContentWriter(deps),
		NewAffiliateBlog(deps),
		NewMicroTasks(deps),
		NewPrintOnDemand(deps),
		NewSocialMedia(deps),
		NewFreelanceBidder(deps),
	}
	out := make([]domain.Registration, 0, len(engines))
	for _, e := range engines {
		out = append(out, domain.Registration{
			Engine:  e,
			Cadence: cadence.MustParse(defaultCadences[e.Name()]),
		})
	}
	return out
}
