package platform

func getLinuxIgnores() []string {
	return []string{
		"./**/*.debug",
		"./**/*.a",
		"./**/*.o",
		"./**/.directory",
	}
}
