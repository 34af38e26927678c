package git

import (
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
)

var _ interfaces.ChangelogGenerator = (*Gateway)(nil)

// Generate lists the subjects of commits since the most recent tag reachable
// from HEAD, newest first, one "- subject" line each. Without any reachable
// tag every commit is listed.
func (g *Gateway) Generate(ctx context.Context) (string, error) {
	head, err := g.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", goerr.Wrap(err, "failed to resolve HEAD")
	}

	tagged, err := g.taggedCommits()
	if err != nil {
		return "", err
	}

	commits, err := g.log(head.Hash())
	if err != nil {
		return "", err
	}

	var since *object.Commit
	for _, c := range commits {
		if _, ok := tagged[c.Hash]; ok {
			since = c
			break
		}
	}

	exclude := map[plumbing.Hash]struct{}{}
	if since != nil {
		ctxlog.From(ctx).Debug("Changelog since tag", "tag", tagged[since.Hash], "commit", since.Hash.String())
		ancestors, err := g.log(since.Hash)
		if err != nil {
			return "", err
		}
		for _, c := range ancestors {
			exclude[c.Hash] = struct{}{}
		}
	}

	var lines []string
	for _, c := range commits {
		if _, ok := exclude[c.Hash]; ok {
			continue
		}
		lines = append(lines, "- "+subject(c.Message))
	}
	return strings.Join(lines, "\n"), nil
}

func subject(message string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(first)
}

// log returns from and its ancestors, newest committer time first
func (g *Gateway) log(from plumbing.Hash) ([]*object.Commit, error) {
	iter, err := g.repo.Log(&git.LogOptions{From: from, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read commit log", goerr.V("from", from.String()))
	}
	defer iter.Close()

	var commits []*object.Commit
	if err := iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, c)
		return nil
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to walk commit log")
	}
	return commits, nil
}

// taggedCommits maps commit hashes to tag names, peeling annotated tags
func (g *Gateway) taggedCommits() (map[plumbing.Hash]string, error) {
	refs, err := g.repo.Tags()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tags")
	}
	defer refs.Close()

	tagged := map[plumbing.Hash]string{}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if tag, err := g.repo.TagObject(hash); err == nil {
			commit, err := tag.Commit()
			if err != nil {
				// tags of trees or blobs never mark a release point
				return nil
			}
			hash = commit.Hash
		} else if !errors.Is(err, plumbing.ErrObjectNotFound) {
			return err
		}
		tagged[hash] = ref.Name().Short()
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, goerr.Wrap(err, "failed to resolve tags")
	}
	return tagged, nil
}
