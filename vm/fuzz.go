package vm

// Fuzz is a go-fuzz harness for the class-file decoder. It exercises
// exactly the entry point the launcher itself calls, the same shape
// saferwall-pe's own fuzz.go uses for its PE decoder: feed raw bytes to
// the top-level parse function and report whether it was accepted.
func Fuzz(data []byte) int {
	cf, err := ParseClass(data)
	if err != nil {
		return 0
	}
	if _, nerr := cf.ThisClassName(); nerr != nil {
		return 0
	}
	return 1
}
