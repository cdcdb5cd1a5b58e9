package device

// DefaultV4L2Pattern matches the capture nodes created by the uvcvideo driver.
const DefaultV4L2Pattern = "/dev/video*"
