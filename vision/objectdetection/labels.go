package objectdetection

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// COCOBusClass is the class id of "bus" in the 80-class COCO taxonomy used by YOLO models.
const COCOBusClass = 5

// Labels maps class ids to human readable names.
type Labels []string

var cocoLabels = Labels{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog",
	"horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant",
	"bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone",
	"microwave", "oven", "toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors",
	"teddy bear", "hair drier", "toothbrush",
}

// COCOLabels returns a copy of the COCO labels.
func COCOLabels() Labels {
	return append(Labels(nil), cocoLabels...)
}

// LoadLabels reads one label per line. Blank lines are kept so line numbers stay class ids.
func LoadLabels(path string) (Labels, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open labels file %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	labels := Labels{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "could not read labels file %q", path)
	}
	if len(labels) == 0 {
		return nil, errors.Errorf("labels file %q is empty", path)
	}
	return labels, nil
}

// Name returns the label for a class id, or the id itself when it is out of range.
func (l Labels) Name(classID int) string {
	if classID >= 0 && classID < len(l) && l[classID] != "" {
		return l[classID]
	}
	return strconv.Itoa(classID)
}

// ID returns the class id of a label, matched case-insensitively.
func (l Labels) ID(name string) (int, bool) {
	for i, label := range l {
		if strings.EqualFold(label, name) {
			return i, true
		}
	}
	return 0, false
}
