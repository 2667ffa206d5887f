package platform

func getMacOSIgnores() []string {
	return []string{
		"./**/__MACOSX",
		"./**/*.dSYM",
		"./**/.DS_Store",
		"./**/._*",
	}
}
