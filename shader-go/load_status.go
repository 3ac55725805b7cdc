package shader_go

type LoadStatus int8

const (
	LOAD_ERROR     LoadStatus = 0
	LOAD_SUCCESS   LoadStatus = 1
	LOAD_NOT_FOUND LoadStatus = 2
)

func (this LoadStatus) String() string {
	switch this {
	case LOAD_SUCCESS:
		return "success"
	case LOAD_NOT_FOUND:
		return "not found"
	default:
		return "error"
	}
}
