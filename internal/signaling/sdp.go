package signaling

import "regexp"

// opusRtpmap matches the Opus rtpmap line to recover its dynamic payload
// type, per spec.md §6's munging contract.
var opusRtpmap = regexp.MustCompile(`a=rtpmap:(\d+) opus/48000/2`)

// MungeOpusMono rewrites the fmtp line of the negotiated Opus payload type
// so that stereo=0;sprop-stereo=0 is present, forcing mono. This is
// intentionally a string transform rather than an SDP parse/re-serialize
// (spec.md §9 "SDP string rewriting"): only one token sequence changes and
// the rest of the SDP must pass through byte-for-byte otherwise, which
// keeps this stable across webrtc library upgrades.
func MungeOpusMono(sdp string) string {
	m := opusRtpmap.FindStringSubmatch(sdp)
	if m == nil {
		return sdp
	}
	pt := m[1]

	fmtpLine := regexp.MustCompile(`(?m)^a=fmtp:` + pt + ` .*$`)
	loc := fmtpLine.FindStringIndex(sdp)
	if loc == nil {
		return sdp
	}
	line := sdp[loc[0]:loc[1]]

	if hasStereoZero(line) {
		return sdp
	}

	newLine := appendParams(line, "stereo=0", "sprop-stereo=0")
	return sdp[:loc[0]] + newLine + sdp[loc[1]:]
}

func hasStereoZero(fmtpLine string) bool {
	return regexp.MustCompile(`(^|[ ;])stereo=0`).MatchString(fmtpLine) &&
		regexp.MustCompile(`(^|[ ;])sprop-stereo=0`).MatchString(fmtpLine)
}

func appendParams(line string, params ...string) string {
	out := line
	for _, p := range params {
		key := p[:regexp.MustCompile(`=`).FindStringIndex(p)[0]]
		if regexp.MustCompile(`(^|[ ;])` + key + `=\d`).MatchString(out) {
			// replace existing value for this key
			out = regexp.MustCompile(`(^|[ ;])`+key+`=\d+`).ReplaceAllString(out, "${1}"+p)
			continue
		}
		out = out + ";" + p
	}
	return out
}
