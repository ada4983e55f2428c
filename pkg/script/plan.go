package script

import (
	"time"

	"github.com/fcmeyer/slurmhelper/pkg/errs"
	"github.com/fcmeyer/slurmhelper/pkg/parcel"
	"github.com/fcmeyer/slurmhelper/pkg/walltime"
)

// ArrayPlan is the partitioning of one array submission.
type ArrayPlan struct {
	Parcels [][]string
	Sizes   []int
	// WallTime is the longest parcel estimate.
	WallTime time.Duration
}

// PlanArray splits jobIDs into parcels. When nParcels is zero the minimum
// count allowed by m is used; otherwise nParcels is validated by the
// partitioner.
func PlanArray(m walltime.Model, jobIDs []string, nParcels int) (*ArrayPlan, error) {
	if len(jobIDs) == 0 {
		return nil, errs.EmptyJobList("array plan")
	}
	if nParcels == 0 {
		n, err := m.MinimumPartitionCount(len(jobIDs))
		if err != nil {
			return nil, err
		}
		// More parcels than jobs would leave some empty.
		nParcels = min(n, len(jobIDs))
	}

	parcels, err := parcel.Split(jobIDs, nParcels)
	if err != nil {
		return nil, err
	}
	sizes := parcel.Sizes(parcels)
	wall, err := m.MaxEstimate(sizes)
	if err != nil {
		return nil, err
	}
	return &ArrayPlan{
		Parcels:  parcels,
		Sizes:    sizes,
		WallTime: wall,
	}, nil
}
