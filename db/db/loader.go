package db

import (
	"github.com/google/uuid"
	"github.com/vikstrous/dataloadgen"
)

type dataLoaderKey string

const (
	DataLoaderKeyGroupData dataLoaderKey = "group_data_loader"
)

// GroupDataLoader batches and caches per-request reads of group content.
// Injected into request contexts by the web layer; the all-groups balance
// and focus queries load many groups at once through it.
type GroupDataLoader struct {
	GetGroupInfoList *dataloadgen.Loader[uuid.UUID, *GroupInfo]
	GetMemberList    *dataloadgen.Loader[uuid.UUID, []Member]
	GetBillList      *dataloadgen.Loader[uuid.UUID, []Bill]
	GetPaymentList   *dataloadgen.Loader[uuid.UUID, []Payment]
}

func NewGroupDataLoader(dbWrapper GroupDBWrapper) *GroupDataLoader {
	return &GroupDataLoader{
		GetGroupInfoList: dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetGroupInfoList),
		GetMemberList:    dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetMemberList),
		GetBillList:      dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetBillList),
		GetPaymentList:   dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetPaymentList),
	}
}
