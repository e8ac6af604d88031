package utils

// Version is the release version stamped into builds.
const Version = "0.1.0"
