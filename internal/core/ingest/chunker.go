package ingest

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// streamChunk groups incoming fragments into token-bounded chunks with
// optional overlap. Overlap keeps a tail of roughly overlapTokens from
// the end of each chunk as the seed of the next, so chunk boundaries do
// not lose context.
func streamChunk(
	ctx context.Context,
	g *errgroup.Group,
	frags <-chan string,
	targetTokens int,
	overlapTokens int,
) <-chan chunk {
	out := make(chan chunk, 8)

	g.Go(func() error {
		defer close(out)

		var (
			buf    []string
			tokSum int
			pos    int
		)

		flush := func() error {
			if tokSum == 0 {
				return nil
			}
			ch := chunk{Pos: pos, Text: strings.Join(buf, "\n"), TokenCnt: tokSum}
			pos++

			select {
			case out <- ch:
			case <-ctx.Done():
				return ctx.Err()
			}

			if overlapTokens > 0 {
				var keep []string
				remain := overlapTokens
				for j := len(buf) - 1; j >= 0 && remain > 0; j-- {
					keep = append([]string{buf[j]}, keep...)
					remain -= approxTokens(buf[j])
				}
				buf = keep
				tokSum = 0
				for _, s := range buf {
					tokSum += approxTokens(s)
				}
			} else {
				buf = buf[:0]
				tokSum = 0
			}
			return nil
		}

		for frag := range frags {
			if err := ctx.Err(); err != nil {
				return err
			}
			buf = append(buf, frag)
			tokSum += approxTokens(frag)
			if tokSum >= targetTokens {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		return flush()
	})

	return out
}

// approxTokens is a cheap token estimator (~4 chars per token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
