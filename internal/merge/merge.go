// Copyright (c) 2024 @neongreen (https://github.com/neongreen)
// Originally from: https://github.com/neongreen/mono/tree/main/beads-merge
//
// MIT License
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
// ---
// Vendored into beads with permission from @neongreen; generalized here from
// a JSONL issue-record three-way merge into a line-level text diff3, keeping
// the same core three-way decision rule (unchanged-from-base sides defer to
// the side that changed; both-changed-to-the-same-value converges; otherwise
// conflict).

// Package merge implements the line-level three-way text merge used as C4's
// fallback before declaring a body field diverged.
package merge

// Merge3 performs a three-way line merge of base/local/remote, emitting
// standard conflict markers around any hunk that could not be resolved by
// the three-way rule. hasConflicts is true iff at least one marker block was
// emitted.
func Merge3(base, local, remote string) (merged string, hasConflicts bool) {
	baseLines := splitLines(base)
	localLines := splitLines(local)
	remoteLines := splitLines(remote)

	syncPoints := commonSyncPoints(baseLines, localLines, remoteLines)

	var out []string
	bPrev, lPrev, rPrev := 0, 0, 0

	flushSegment := func(bLo, bHi, lLo, lHi, rLo, rHi int) {
		baseSeg := baseLines[bLo:bHi]
		localSeg := localLines[lLo:lHi]
		remoteSeg := remoteLines[rLo:rHi]

		switch {
		case linesEqual(localSeg, baseSeg) && linesEqual(remoteSeg, baseSeg):
			out = append(out, baseSeg...)
		case linesEqual(localSeg, baseSeg):
			out = append(out, remoteSeg...)
		case linesEqual(remoteSeg, baseSeg):
			out = append(out, localSeg...)
		case linesEqual(localSeg, remoteSeg):
			out = append(out, localSeg...)
		default:
			hasConflicts = true
			out = append(out, "<<<<<<< LOCAL")
			out = append(out, localSeg...)
			out = append(out, "||||||| BASE")
			out = append(out, baseSeg...)
			out = append(out, "=======")
			out = append(out, remoteSeg...)
			out = append(out, ">>>>>>> REMOTE")
		}
	}

	for _, sp := range syncPoints {
		flushSegment(bPrev, sp.b, lPrev, sp.l, rPrev, sp.r)
		out = append(out, baseLines[sp.b]) // the synchronized line itself
		bPrev, lPrev, rPrev = sp.b+1, sp.l+1, sp.r+1
	}
	flushSegment(bPrev, len(baseLines), lPrev, len(localLines), rPrev, len(remoteLines))

	return joinLines(out), hasConflicts
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type syncPoint struct {
	b, l, r int
}

// commonSyncPoints finds base line indices that align, unchanged, to both
// local and remote — the classic diff3 synchronization lines. It composes
// two pairwise LCS alignments (base/local and base/remote) and keeps only
// the base indices present in both.
func commonSyncPoints(base, local, remote []string) []syncPoint {
	baseLocal := lcsAlignment(base, local)
	baseRemote := lcsAlignment(base, remote)

	localAt := make(map[int]int, len(baseLocal))
	for _, p := range baseLocal {
		localAt[p.a] = p.b
	}
	remoteAt := make(map[int]int, len(baseRemote))
	for _, p := range baseRemote {
		remoteAt[p.a] = p.b
	}

	var out []syncPoint
	for bi := 0; bi < len(base); bi++ {
		li, lok := localAt[bi]
		ri, rok := remoteAt[bi]
		if lok && rok {
			out = append(out, syncPoint{b: bi, l: li, r: ri})
		}
	}
	return out
}

type alignPair struct{ a, b int }

// lcsAlignment returns the increasing index pairs (i, j) such that a[i] ==
// b[j] along a longest common subsequence of a and b.
func lcsAlignment(a, b []string) []alignPair {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return nil
	}

	dp := make([][]int32, n+1)
	for i := range dp {
		dp[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	var out []alignPair
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			out = append(out, alignPair{i, j})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return out
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
