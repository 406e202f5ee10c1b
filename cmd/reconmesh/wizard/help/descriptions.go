package help

// HelpText contains information about a field.
type HelpText struct {
	Title       string
	Description string
	Details     string
}

// Texts contains help information for all wizard fields.
var Texts = map[string]HelpText{
	"source": {
		Title:       "SOURCE",
		Description: "Where the DICOM series lives.",
		Details:     "A local directory of .dcm files; only files directly inside it are read.",
	},
	"output_prefix": {
		Title:       "OUTPUT PREFIX",
		Description: "Where mesh.stl and mesh.glb are uploaded.",
		Details:     "Keys are written as <prefix>/mesh.stl and <prefix>/mesh.glb under the same store as the source.",
	},
	"tissues": {
		Title:       "TISSUES",
		Description: "Which tissue masks to segment and mesh.",
		Details:     "body, bone, muscle. The first non-body tissue requested becomes the surface to extract.",
	},
	"force_series": {
		Title:       "FORCE SERIES",
		Description: "Pin a specific SeriesInstanceUID instead of letting the selector score candidates.",
		Details:     "Leave blank to let the series selector pick automatically.",
	},
	"force_25d": {
		Title:       "FORCE 2.5D",
		Description: "Allow the per-slice (2.5D) bone segmentation branch.",
		Details:     "The branch is taken only when the through-plane spacing calls for it; turning this off always uses the 3D branch.",
	},
	"decimation_max_faces": {
		Title:       "DECIMATION MAX FACES",
		Description: "Face count above which mesh decimation is attempted.",
		Details:     "No decimation backend is built in, so a mesh above this count is kept as is and a warning is logged. 0 disables the check.",
	},
	"compressor_path": {
		Title:       "DRACO COMPRESSOR PATH",
		Description: "Path to an external Draco geometry compressor binary.",
		Details:     "Leave blank to export an uncompressed GLB.",
	},
	"config_file": {
		Title:       "CONFIG FILE",
		Description: "Load these settings from a saved YAML file instead of entering them by hand.",
		Details:     "Produced by --save-config on a previous run.",
	},
}
