package github

import (
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// Repository identifies a hosted repository
type Repository struct {
	Owner string
	Name  string
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

var remotePatterns = []*regexp.Regexp{
	// git@github.com:owner/repo.git, ssh://git@host/owner/repo.git
	regexp.MustCompile(`^(?:ssh://)?[^@/]+@[^:/]+[:/]([^/]+)/([^/]+?)(?:\.git)?/?$`),
	// https://github.com/owner/repo(.git)
	regexp.MustCompile(`^https?://(?:[^@/]+@)?[^/]+/([^/]+)/([^/]+?)(?:\.git)?/?$`),
}

// ParseRepository accepts "owner/repo" or a git remote URL
func ParseRepository(s string) (Repository, error) {
	s = strings.TrimSpace(s)
	for _, re := range remotePatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return Repository{Owner: m[1], Name: m[2]}, nil
		}
	}

	if parts := strings.Split(s, "/"); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return Repository{Owner: parts[0], Name: parts[1]}, nil
	}

	return Repository{}, goerr.New("cannot determine GitHub repository",
		goerr.V("input", s),
		goerr.T(model.ErrTagPrecondition))
}
