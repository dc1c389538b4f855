package video

// splitNALUnits walks an Annex-B H.264 access unit (one or more NAL units
// separated by 00 00 01 / 00 00 00 01 start codes, as OpenH264's encoder
// emits) and returns each unit's payload with its start code stripped.
// Grounded on original_source's use of the openh264-rs nal_units()
// iterator, reimplemented here since this port talks to the C library
// directly rather than through that Rust wrapper.
func splitNALUnits(buf []byte) [][]byte {
	var units [][]byte

	starts := findStartCodes(buf)
	if len(starts) == 0 {
		if len(buf) > 0 {
			units = append(units, buf)
		}
		return units
	}

	for i, s := range starts {
		end := len(buf)
		if i+1 < len(starts) {
			end = starts[i+1].offset
		}
		unit := buf[s.offset+s.length : end]
		if len(unit) > 0 {
			units = append(units, unit)
		}
	}
	return units
}

type startCode struct {
	offset int
	length int
}

func findStartCodes(buf []byte) []startCode {
	var starts []startCode
	for i := 0; i+2 < len(buf); i++ {
		if buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 1 {
			if i > 0 && buf[i-1] == 0 {
				starts = append(starts, startCode{offset: i - 1, length: 4})
			} else {
				starts = append(starts, startCode{offset: i, length: 3})
			}
			i += 2
		}
	}
	return starts
}
