package mocks

//go:generate mockery --name RecordStore --srcpkg github.com/prism-lab/project-prism/internal/store --output ./store --outpkg storemocks --with-expecter
//go:generate mockery --name RunCoordinator --srcpkg github.com/prism-lab/project-prism/internal/projection --output ./projection --outpkg projectionmocks --with-expecter
