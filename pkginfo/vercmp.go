package pkginfo

// VerCmp orders two pacman version strings the way libalpm does: versions
// are split into [epoch:]version[-release] triplets and each part is
// compared segment-wise, with numeric segments ordered numerically and
// always newer than alphabetic ones. Returns <0, 0 or >0.
func VerCmp(a, b string) int {
	if a == b {
		return 0
	}

	epoch1, version1, release1 := parseEVR(a)
	epoch2, version2, release2 := parseEVR(b)

	ret := rpmVerCmp(epoch1, epoch2)
	if ret == 0 {
		ret = rpmVerCmp(version1, version2)
		if ret == 0 && release1 != "" && release2 != "" {
			ret = rpmVerCmp(release1, release2)
		}
	}

	return ret
}

// parseEVR splits "[epoch:]version[-release]". The epoch defaults to "0";
// a missing release stays empty so that "1.0" and "1.0-1" compare equal.
func parseEVR(evr string) (epoch, version, release string) {
	s := 0
	for s < len(evr) && isDigit(evr[s]) {
		s++
	}

	rest := evr
	epoch = "0"
	if s < len(evr) && evr[s] == ':' {
		if s > 0 {
			epoch = evr[:s]
		}
		rest = evr[s+1:]
	}

	if dash := lastIndexByte(rest, '-'); dash >= 0 {
		return epoch, rest[:dash], rest[dash+1:]
	}

	return epoch, rest, ""
}

// rpmVerCmp compares one version part segment-wise.
func rpmVerCmp(a, b string) int {
	if a == b {
		return 0
	}

	one, two := 0, 0

	for one < len(a) && two < len(b) {
		segStart1, segStart2 := one, two
		for one < len(a) && !isAlnum(a[one]) {
			one++
		}
		for two < len(b) && !isAlnum(b[two]) {
			two++
		}

		if one == len(a) || two == len(b) {
			break
		}

		// A longer separator run sorts newer: "1..0" > "1.0".
		if one-segStart1 != two-segStart2 {
			if one-segStart1 < two-segStart2 {
				return -1
			}

			return 1
		}

		// Grab the next completely numeric or completely alphabetic segment.
		isnum := isDigit(a[one])
		end1, end2 := one, two
		if isnum {
			for end1 < len(a) && isDigit(a[end1]) {
				end1++
			}
			for end2 < len(b) && isDigit(b[end2]) {
				end2++
			}
		} else {
			for end1 < len(a) && isAlpha(a[end1]) {
				end1++
			}
			for end2 < len(b) && isAlpha(b[end2]) {
				end2++
			}
		}

		seg1 := a[one:end1]
		seg2 := b[two:end2]

		// Segments of different types: numeric are always newer.
		if len(seg2) == 0 {
			if isnum {
				return 1
			}

			return -1
		}

		if isnum {
			seg1 = trimLeadingZeros(seg1)
			seg2 = trimLeadingZeros(seg2)

			// Whichever number has more digits wins.
			if len(seg1) > len(seg2) {
				return 1
			}
			if len(seg2) > len(seg1) {
				return -1
			}
		}

		if seg1 < seg2 {
			return -1
		}
		if seg1 > seg2 {
			return 1
		}

		one, two = end1, end2
	}

	// All compared segments were equal; only separators or a leftover tail
	// remain.
	if one == len(a) && two == len(b) {
		return 0
	}

	// A remaining alphabetic tail never beats an empty string.
	if (one == len(a) && !aheadIsAlpha(b, two)) || aheadIsAlpha(a, one) {
		return -1
	}

	return 1
}

func aheadIsAlpha(s string, i int) bool {
	return i < len(s) && isAlpha(s[i])
}

func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s) && s[i] == '0' {
		i++
	}

	return s[i:]
}

func lastIndexByte(s string, c byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == c {
			return i
		}
	}

	return -1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }
