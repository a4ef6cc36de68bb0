package doctype

// IsBinaryContent checks if the given byte slice appears to be binary content.
// It checks the first 512 bytes (or less) for null bytes.
func IsBinaryContent(data []byte) bool {
	checkSize := min(len(data), 512)
	for i := 0; i < checkSize; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}
