package formats

import "github.com/Skryldev/fileforge/core"

var (
	imageTargets    = []string{".jpg", ".png", ".gif", ".bmp", ".tiff"}
	audioTargets    = []string{".wav"}
	videoTargets    = []string{".avi", ".mjpeg", ".gif"}
	documentTargets = []string{".txt", ".md", ".html", ".pdf"}
	archiveTargets  = []string{".zip", ".tar", ".tgz"}
)

// Builtin returns the descriptors for every format the stock adapters
// handle.
func Builtin() []Descriptor {
	return []Descriptor{
		// Image.
		rw(".jpg", "image/jpeg", core.CategoryImage, imageTargets),
		rw(".png", "image/png", core.CategoryImage, imageTargets),
		rw(".gif", "image/gif", core.CategoryImage, imageTargets),
		rw(".bmp", "image/bmp", core.CategoryImage, imageTargets),
		rw(".tiff", "image/tiff", core.CategoryImage, imageTargets),
		ro(".webp", "image/webp", core.CategoryImage, imageTargets),

		// Audio.
		rw(".wav", "audio/wav", core.CategoryAudio, audioTargets),
		ro(".mp3", "audio/mpeg", core.CategoryAudio, audioTargets),
		ro(".flac", "audio/flac", core.CategoryAudio, audioTargets),
		ro(".ogg", "audio/ogg", core.CategoryAudio, audioTargets),

		// Video.
		rw(".avi", "video/x-msvideo", core.CategoryVideo, videoTargets),
		rw(".mjpeg", "video/x-motion-jpeg", core.CategoryVideo, videoTargets),

		// Document.
		rw(".txt", "text/plain", core.CategoryDocument, documentTargets),
		rw(".md", "text/markdown", core.CategoryDocument, documentTargets),
		rw(".html", "text/html", core.CategoryDocument, documentTargets),
		rw(".pdf", "application/pdf", core.CategoryDocument, documentTargets),

		// Archive.
		rw(".zip", "application/zip", core.CategoryArchive, archiveTargets),
		rw(".tar", "application/x-tar", core.CategoryArchive, archiveTargets),
		rw(".tgz", "application/gzip", core.CategoryArchive, archiveTargets),
	}
}

// rw describes a format that can be both read and written.
func rw(ext, mime string, cat core.Category, targets []string) Descriptor {
	return Descriptor{
		Ext:      ext,
		MIME:     mime,
		Category: cat,
		Targets:  targets,
		Levels:   core.Levels,
		Decode:   true,
		Encode:   true,
	}
}

// ro describes a decode-only format.  It has no compression levels of its
// own because nothing can write it back.
func ro(ext, mime string, cat core.Category, targets []string) Descriptor {
	return Descriptor{
		Ext:      ext,
		MIME:     mime,
		Category: cat,
		Targets:  targets,
		Decode:   true,
	}
}

var aliases = map[string]string{
	".jpeg":     ".jpg",
	".jpe":      ".jpg",
	".tif":      ".tiff",
	".htm":      ".html",
	".xhtml":    ".html",
	".markdown": ".md",
	".text":     ".txt",
	".wave":     ".wav",
	".oga":      ".ogg",
	".mjpg":     ".mjpeg",
	".tar.gz":   ".tgz",
}
