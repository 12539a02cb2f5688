package api

// Image is a catalog record. Name is the decoded object key and never changes
// once written.
type Image struct {
	Name         string `json:"imageName" dynamodbav:"ImageName"`
	Caption      string `json:"caption,omitempty" dynamodbav:"Caption,omitempty"`
	Date         string `json:"date,omitempty" dynamodbav:"Date,omitempty"`
	Photographer string `json:"photographer,omitempty" dynamodbav:"Photographer,omitempty"`
}

// Set assigns a single attribute by its catalog name. It reports false for
// names the record doesn't carry.
func (i *Image) Set(attribute, value string) bool {
	switch attribute {
	case AttributeCaption:
		i.Caption = value
	case AttributeDate:
		i.Date = value
	case AttributePhotographer:
		i.Photographer = value
	default:
		return false
	}
	return true
}
